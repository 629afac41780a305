package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

func TestWithClockPinsRequestTime(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	var first, second time.Time
	h := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, first.Equal(fixed))
	assert.Equal(t, first, second)
	assert.Equal(t, time.UTC, first.Location())
}
