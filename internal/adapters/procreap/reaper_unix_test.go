//go:build unix

package procreap

import (
	"context"
	"errors"
	"syscall"
	"testing"
)

func TestReap_KillsOrphans(t *testing.T) {
	r := New(nil)
	r.self = 4242
	r.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "ps" {
			t.Fatalf("unexpected command %s", name)
		}
		return []byte(psOutput), nil
	}
	var killed []int
	r.kill = func(pid int) error {
		if pid == 502 {
			return syscall.ESRCH
		}
		killed = append(killed, pid)
		return nil
	}

	n, err := r.Reap(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(killed) != 3 {
		t.Fatalf("killed=%v n=%d", killed, n)
	}
}

func TestReap_ListFailure(t *testing.T) {
	r := New(nil)
	r.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("ps: not found")
	}
	if _, err := r.Reap(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
