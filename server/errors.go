package server

import "errors"

// ErrNoService indicates the server was built without a turn service.
var ErrNoService = errors.New("server: no turn service configured")

// ErrNoRouter indicates the server was built without a tool router.
var ErrNoRouter = errors.New("server: no tool router configured")
