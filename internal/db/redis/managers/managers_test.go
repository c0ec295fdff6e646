package managers

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	r "github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/db/redis"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClientFromRedis(r.NewClient(&r.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { client.Close() })

	return mr, client
}
