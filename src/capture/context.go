package capture

import "context"

type contextKey string

const valuesKey contextKey = "capture_values"

// WithContext returns a copy of ctx carrying values. Values already attached
// to ctx are kept unless values overrides the same key.
func WithContext(ctx context.Context, values Context) context.Context {
	merged := mergeContext(ValuesFromContext(ctx), values)
	return context.WithValue(ctx, valuesKey, merged)
}

// ValuesFromContext returns the values attached with WithContext.
func ValuesFromContext(ctx context.Context) Context {
	if ctx == nil {
		return nil
	}
	values, _ := ctx.Value(valuesKey).(Context)
	return values
}

// mergeContext copies base and then overrides; neither input is modified.
func mergeContext(base, overrides Context) Context {
	out := make(Context, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
