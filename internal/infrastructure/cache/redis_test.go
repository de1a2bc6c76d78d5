package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
)

func TestRedis_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := &Redis{client: db}
	ctx := context.Background()

	t.Run("cache hit returns value", func(t *testing.T) {
		mock.ExpectGet("funding:BTC:1:2").SetVal(`[{"rate":0.01}]`)

		value, found, err := c.Get(ctx, "funding:BTC:1:2")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !found {
			t.Error("expected cache hit")
		}
		if string(value) != `[{"rate":0.01}]` {
			t.Errorf("unexpected value %s", value)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("redis expectations not met: %v", err)
		}
	})

	t.Run("cache miss is not an error", func(t *testing.T) {
		mock.ExpectGet("missing").RedisNil()

		value, found, err := c.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get should not error on miss: %v", err)
		}
		if found {
			t.Error("expected cache miss")
		}
		if value != nil {
			t.Errorf("expected nil value on miss, got %v", value)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("redis expectations not met: %v", err)
		}
	})

	t.Run("backend failure is an error", func(t *testing.T) {
		mock.ExpectGet("broken").SetErr(redis.TxFailedErr)

		_, _, err := c.Get(ctx, "broken")
		if err == nil {
			t.Error("expected error when redis fails")
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("redis expectations not met: %v", err)
		}
	})
}

func TestRedis_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := &Redis{client: db}

	mock.ExpectSet("k", []byte("v"), time.Minute).SetVal("OK")

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations not met: %v", err)
	}
}

func TestRedis_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := &Redis{client: db}

	mock.ExpectDel("k").SetVal(1)

	if err := c.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations not met: %v", err)
	}
}
