package feed

import (
	"context"
	"os"
	"testing"

	"page-counter/internal/model"

	"github.com/redis/go-redis/v9"
)

// 需要真实 Redis：PAGE_COUNTER_TEST_REDIS=127.0.0.1:6379
func TestRedisStreamPublish(t *testing.T) {
	addr := os.Getenv("PAGE_COUNTER_TEST_REDIS")
	if addr == "" {
		t.Skip("PAGE_COUNTER_TEST_REDIS not set")
	}
	ctx := context.Background()
	rc := redis.NewClient(&redis.Options{Addr: addr})
	defer rc.Close()
	stream := "page-counter:test:" + t.Name()
	rc.Del(ctx, stream)
	defer rc.Del(ctx, stream)

	s := NewRedisStream(rc, stream, 10)
	rec := model.AccessRecord{ID: 42, URL: "a.com/p", Site: "a.com", IPAddr: "2001:db8::1"}
	if err := s.Publish(ctx, rec); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msgs, err := rc.XRange(ctx, stream, "-", "+").Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("xrange = %v, %v", msgs, err)
	}
	v := msgs[0].Values
	if v["id"] != "42" || v["url"] != "a.com/p" || v["site"] != "a.com" || v["ip_addr"] != "2001:db8::1" {
		t.Fatalf("values = %v", v)
	}
}
