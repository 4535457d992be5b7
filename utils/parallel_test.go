package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestGroupWorkParallelCoversEveryItem(t *testing.T) {
	for _, tc := range []struct {
		workers, total, groups int
	}{
		{4, 0, 0},
		{4, 1, 1},
		{4, 3, 3},
		{4, 4, 4},
		{4, 10, 4},
		{3, 100, 3},
		{1, 7, 1},
	} {
		seen := make([]int32, tc.total)
		var numGroups int
		err := GroupWorkParallelN(context.Background(), tc.workers, tc.total, func(n int) {
			numGroups = n
		}, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			test.That(t, to-from, test.ShouldEqual, groupSize)
			return func(memberNum, workNum int) {
				atomic.AddInt32(&seen[workNum], 1)
			}, nil
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, numGroups, test.ShouldEqual, tc.groups)
		for _, count := range seen {
			test.That(t, count, test.ShouldEqual, 1)
		}
	}
}

func TestGroupWorkParallelDefaultWorkers(t *testing.T) {
	var count int32
	err := GroupWorkParallel(context.Background(), 2*ParallelFactor+1, nil,
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				atomic.AddInt32(&count, 1)
			}, nil
		})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 2*ParallelFactor+1)
}

func TestGroupWorkParallelPanic(t *testing.T) {
	var done int32
	err := GroupWorkParallelN(context.Background(), 2, 4, nil,
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
					if workNum == 3 {
						panic("boom")
					}
				}, func() {
					atomic.AddInt32(&done, 1)
				}
		})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
	test.That(t, done, test.ShouldEqual, 1)
}

func TestGroupWorkParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := GroupWorkParallelN(ctx, 2, 4, nil,
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			t.Fatal("no group should run after cancellation")
			return nil, nil
		})
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	elapsed, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 150*time.Millisecond)
	test.That(t, elapsed, test.ShouldBeGreaterThan, 90*time.Millisecond)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	elapsed, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 50*time.Millisecond)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
}
