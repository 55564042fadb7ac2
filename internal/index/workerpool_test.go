package index

import (
	"fmt"
	"sort"
	"testing"
)

func TestPoolProcessesAllTasks(t *testing.T) {
	pool := NewPool(3, func() ProcessFunc {
		return func(task FileTask) (FileResult, error) {
			return FileResult{Lang: "go"}, nil
		}
	})

	const n = 20
	go func() {
		for i := 0; i < n; i++ {
			pool.Submit(FileTask{FilePath: fmt.Sprintf("file%d.go", i)})
		}
	}()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		res := <-pool.Results()
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		seen[res.FilePath] = true
	}
	pool.Close()

	if len(seen) != n {
		t.Fatalf("expected %d distinct results, got %d", n, len(seen))
	}
}

func TestPoolWorkerExitsOnError(t *testing.T) {
	pool := NewPool(2, func() ProcessFunc {
		return func(task FileTask) (FileResult, error) {
			if task.FilePath == "bad.go" {
				return FileResult{}, fmt.Errorf("boom")
			}
			return FileResult{}, nil
		}
	})

	go func() {
		pool.Submit(FileTask{FilePath: "bad.go"})
		pool.Submit(FileTask{FilePath: "ok.go"})
	}()

	var errs, oks int
	for i := 0; i < 2; i++ {
		res := <-pool.Results()
		if res.Err != nil {
			errs++
		} else {
			oks++
		}
	}
	pool.Close()

	if errs != 1 || oks != 1 {
		t.Fatalf("expected 1 error and 1 ok, got errs=%d oks=%d", errs, oks)
	}
	if pool.AliveWorkers() != 1 {
		t.Fatalf("expected 1 surviving worker, got %d", pool.AliveWorkers())
	}
}

func TestPoolPanicIsReportedAsError(t *testing.T) {
	pool := NewPool(1, func() ProcessFunc {
		return func(task FileTask) (FileResult, error) {
			panic("parser exploded")
		}
	})

	pool.Submit(FileTask{FilePath: "crash.go"})
	res := <-pool.Results()
	pool.Close()

	if res.Err == nil {
		t.Fatal("expected panic to surface as an error result")
	}
}

func TestPoolOrderingIsStableForSingleWorker(t *testing.T) {
	pool := NewPool(1, func() ProcessFunc {
		return func(task FileTask) (FileResult, error) {
			return FileResult{}, nil
		}
	})

	files := []string{"a.go", "b.go", "c.go"}
	go func() {
		for _, f := range files {
			pool.Submit(FileTask{FilePath: f})
		}
	}()

	var got []string
	for range files {
		got = append(got, (<-pool.Results()).FilePath)
	}
	pool.Close()

	sort.Strings(got)
	sort.Strings(files)
	for i := range files {
		if got[i] != files[i] {
			t.Fatalf("result set mismatch: got %v want %v", got, files)
		}
	}
}
