package lock_test

import (
	"testing"

	"github.com/rmaia/budget-calendar-go/internal/infra/lock"
)

func TestKeyed_ExclusivePerKey(t *testing.T) {
	k := lock.NewKeyed()

	release, ok := k.TryAcquire("u-1|2026|4")
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	if _, ok := k.TryAcquire("u-1|2026|4"); ok {
		t.Error("second acquire on a held key should fail")
	}

	release()
	release2, ok := k.TryAcquire("u-1|2026|4")
	if !ok {
		t.Error("acquire after release should succeed")
	}
	if release2 != nil {
		release2()
	}
}

func TestKeyed_IndependentKeys(t *testing.T) {
	k := lock.NewKeyed()

	r1, ok := k.TryAcquire("u-1|2026|4")
	if !ok {
		t.Fatal("acquire failed")
	}
	defer r1()

	r2, ok := k.TryAcquire("u-1|2026|5")
	if !ok {
		t.Fatal("a different month should not contend")
	}
	defer r2()

	r3, ok := k.TryAcquire("u-2|2026|4")
	if !ok {
		t.Fatal("a different user should not contend")
	}
	defer r3()
}
