package main

import (
	"context"
	"testing"
	"time"
)

func TestWaitDone(t *testing.T) {
	first, second := make(chan struct{}), make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(first)
		close(second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !waitDone(ctx, first, second) {
		t.Fatal("expected both tasks to finish")
	}
}

func TestWaitDoneGivesUp(t *testing.T) {
	finished, stuck := make(chan struct{}), make(chan struct{})
	close(finished)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if waitDone(ctx, finished, stuck) {
		t.Fatal("a stuck task must not count as done")
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("waited %s past the deadline", d)
	}
}
