package observe

import "go.opentelemetry.io/otel/attribute"

// Operation kinds used in span names, metric attributes, and logs.
const (
	KindExchange = "exchange"
	KindVault    = "vault"
	KindTool     = "tool"
	KindOracle   = "oracle"
)

// OpMeta identifies one observed operation: an exchange step, a vault
// bridge call, a tool execution, or an oracle round trip.
type OpMeta struct {
	Kind       string // exchange|vault|tool|oracle (required)
	Name       string // step or tool name (required)
	Audience   string // audience key, when the operation is audience-bound
	Connection string // federated connection name, when applicable
}

// SpanName returns the deterministic span name for this operation.
// Format: <kind>.<name>
func (m OpMeta) SpanName() string {
	return m.Kind + "." + m.Name
}

// Attributes returns the OTel attributes describing this operation.
func (m OpMeta) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("op.kind", m.Kind),
		attribute.String("op.name", m.Name),
	}
	if m.Audience != "" {
		attrs = append(attrs, attribute.String("op.audience", m.Audience))
	}
	if m.Connection != "" {
		attrs = append(attrs, attribute.String("op.connection", m.Connection))
	}
	return attrs
}
