package testkit

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
)

// Suite manages the lifecycle of the Redis container shared by integration tests.
type Suite struct {
	mu    sync.Mutex
	cfg   Config
	redis *RedisModule
}

var (
	globalSuite *Suite
	globalOnce  sync.Once
)

// Global returns the singleton Suite instance.
func Global() *Suite {
	globalOnce.Do(func() {
		globalSuite = &Suite{cfg: LoadConfig()}
	})
	return globalSuite
}

// Setup starts Redis (or uses the external override).
// Returns an error if called twice without Shutdown in between.
func (s *Suite) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.redis != nil {
		return fmt.Errorf("suite already set up; call Shutdown first")
	}

	rdb, err := StartRedis(ctx, &s.cfg)
	if err != nil {
		return fmt.Errorf("setup redis: %w", err)
	}
	s.redis = rdb
	return nil
}

// Shutdown terminates the container unless KEEP_CONTAINERS is set.
func (s *Suite) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.redis == nil {
		return
	}

	if s.cfg.KeepContainers {
		fmt.Println("KEEP_CONTAINERS=true, skipping container cleanup")
		fmt.Println("  Redis Addr:", s.redis.Addr())
	} else if err := s.redis.Terminate(ctx); err != nil {
		fmt.Println("warning: failed to terminate redis container:", err)
	}
	s.redis = nil
}

// Redis returns the running Redis module, or nil before Setup.
func (s *Suite) Redis() *RedisModule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redis
}

// Run sets up the suite, calls optional afterSetup callbacks (e.g. for opening
// clients), executes tests, then shuts down. Intended for use in TestMain.
func (s *Suite) Run(m *testing.M, afterSetup ...func() error) {
	ctx := context.Background()

	if err := s.Setup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "integration test setup failed: %v\n", err)
		os.Exit(1)
	}

	for _, fn := range afterSetup {
		if err := fn(); err != nil {
			fmt.Fprintf(os.Stderr, "afterSetup callback failed: %v\n", err)
			s.Shutdown(ctx)
			os.Exit(1)
		}
	}

	code := m.Run()

	s.Shutdown(ctx)
	os.Exit(code)
}

// Run is a package-level convenience that delegates to Global().Run.
func Run(m *testing.M, afterSetup ...func() error) {
	Global().Run(m, afterSetup...)
}
