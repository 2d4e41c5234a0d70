package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "biovault/pkg/domain"
)

func TestAccessors_DefaultsWhenUnset(t *testing.T) {
	ctx := context.Background()
	assert.True(t, UserID(ctx).IsNil())
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessors_RoundTrip(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := WithUserID(context.Background(), id.UserID("u1"))
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithClientMetadata(ctx, "10.0.0.1", "Mozilla/5.0")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, id.UserID("u1"), UserID(ctx))
	assert.Equal(t, "req-123", RequestID(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "Mozilla/5.0", UserAgent(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
