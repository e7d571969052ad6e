package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestPresenceMirrorMarkActiveSetsKeyWithTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mirror := NewPresenceMirror(client, nil)

	mock.ExpectSet("ivr-gateway:call:call-1", "client-42", presenceTTL).SetVal("OK")

	mirror.MarkActive(context.Background(), "call-1", "client-42")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPresenceMirrorMarkInactiveDeletesKey(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mirror := NewPresenceMirror(client, nil)

	mock.ExpectDel("ivr-gateway:call:call-1").SetVal(1)

	mirror.MarkInactive(context.Background(), "call-1")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPresenceMirrorActiveCountScansKeys(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mirror := NewPresenceMirror(client, nil)

	mock.ExpectScan(0, "ivr-gateway:call:*", 100).SetVal([]string{"ivr-gateway:call:a", "ivr-gateway:call:b"}, 0)

	if got := mirror.ActiveCount(context.Background()); got != 2 {
		t.Fatalf("ActiveCount() = %d, want 2", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPresenceMirrorDisabledWithNilClient(t *testing.T) {
	mirror := NewPresenceMirror(nil, nil)

	mirror.MarkActive(context.Background(), "call-1", "client-42")
	mirror.MarkInactive(context.Background(), "call-1")

	if got := mirror.ActiveCount(context.Background()); got != -1 {
		t.Fatalf("ActiveCount() = %d, want -1 for disabled mirror", got)
	}
}

func TestNewRedisClientEmptyAddrDisablesMirroring(t *testing.T) {
	client, err := NewRedisClient("", "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	if client != nil {
		t.Fatalf("NewRedisClient() = %v, want nil for empty addr", client)
	}
}

func TestNewRedisClientUnreachableReturnsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = ctx

	_, err := NewRedisClient("127.0.0.1:1", "", 0)
	if err == nil {
		t.Fatal("NewRedisClient() error = nil, want ping failure against an unreachable address")
	}
}
