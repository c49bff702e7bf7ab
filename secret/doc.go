// Package secret resolves credential material referenced from
// configuration: client secrets and the agent's signing key.
//
// Configuration values may be literals, `env://NAME` references,
// `file://path` references, or strings containing `${NAME}`
// placeholders expanded strictly against the environment. Resolved
// values never pass through the logging layer.
package secret
