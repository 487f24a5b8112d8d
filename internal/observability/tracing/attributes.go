package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/rentflow/pkg/apperr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedKeys = map[attribute.Key]struct{}{
	"tenant.name":  {},
	"tenant.email": {},
	"tenant.phone": {},
	"http.body":    {},
}

// SafeAttributes drops attributes that could carry personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its kind and code so span events never echo user input.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	kind := apperr.KindOf(err)
	if code := apperr.Code(err); code != "" {
		return errors.New(string(kind) + ": " + code)
	}
	return errors.New(string(kind))
}

// ExtractContext pulls the remote span context out of carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
