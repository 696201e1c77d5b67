package ssh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockClient struct {
	mu        sync.Mutex
	alive     bool
	closed    bool
	execCalls []string
	execRes   ExecResult
	execErr   error
	sftp      SFTPClient
	sftpErr   error
}

func (m *mockClient) Execute(_ context.Context, command string, _ time.Duration) (ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execCalls = append(m.execCalls, command)
	if m.execErr != nil {
		return ExecResult{}, m.execErr
	}
	return m.execRes, nil
}

func (m *mockClient) SFTP() (SFTPClient, error) {
	if m.sftpErr != nil {
		return nil, m.sftpErr
	}
	return m.sftp, nil
}

func (m *mockClient) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.alive = false
	return nil
}

type mockDialer struct {
	mu      sync.Mutex
	calls   int
	params  []ConnectionParams
	results map[string]Client // keyed by host; missing host = error
	delay   time.Duration
}

func (m *mockDialer) Dial(_ context.Context, params ConnectionParams) (Client, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.params = append(m.params, params)
	client, ok := m.results[params.Host]
	if !ok {
		return nil, errors.New("no route to host " + params.Host)
	}
	return client, nil
}

func (m *mockDialer) dialCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestAcquireCachesConnection(t *testing.T) {
	client := &mockClient{alive: true}
	dialer := &mockDialer{results: map[string]Client{"eos": client}}
	cache := NewCache(dialer, "eos", nil)

	for i := 0; i < 5; i++ {
		got, err := cache.Acquire(context.Background(), "ops", "eos")
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		if got != client {
			t.Fatalf("Acquire %d returned wrong client", i)
		}
	}

	if dialer.dialCalls() != 1 {
		t.Errorf("dial calls = %d, want 1", dialer.dialCalls())
	}
	if cache.Len() != 1 {
		t.Errorf("cache size = %d, want 1", cache.Len())
	}
}

func TestAcquireEvictsDeadConnection(t *testing.T) {
	dead := &mockClient{alive: false}
	dialer := &mockDialer{results: map[string]Client{"eos": dead}}
	cache := NewCache(dialer, "eos", nil)

	if _, err := cache.Acquire(context.Background(), "ops", "eos"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	fresh := &mockClient{alive: true}
	dialer.mu.Lock()
	dialer.results["eos"] = fresh
	dialer.mu.Unlock()

	got, err := cache.Acquire(context.Background(), "ops", "eos")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if got != fresh {
		t.Error("expected redial after evicting dead connection")
	}
	if !dead.closed {
		t.Error("dead connection was not closed on eviction")
	}
	if dialer.dialCalls() != 2 {
		t.Errorf("dial calls = %d, want 2", dialer.dialCalls())
	}
	if cache.Len() != 1 {
		t.Errorf("cache size = %d, want 1", cache.Len())
	}
}

func TestAcquireFallbackStoredUnderPrimaryKey(t *testing.T) {
	client := &mockClient{alive: true}
	dialer := &mockDialer{results: map[string]Client{"100.64.0.2": client}}
	cache := NewCache(dialer, "eos", nil, WithFallbackHost("100.64.0.2"))

	got, err := cache.Acquire(context.Background(), "ops", "eos")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != client {
		t.Fatal("expected fallback client")
	}
	if len(dialer.params) != 2 || dialer.params[0].Host != "eos" || dialer.params[1].Host != "100.64.0.2" {
		t.Fatalf("candidate order = %v", dialer.params)
	}

	// The fallback-derived handle must be reusable under the primary key.
	again, err := cache.Acquire(context.Background(), "ops", "eos")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if again != client {
		t.Error("fallback handle not found under primary key")
	}
	if dialer.dialCalls() != 2 {
		t.Errorf("dial calls = %d, want 2", dialer.dialCalls())
	}
}

func TestAcquireNoFallbackForNonDefaultHost(t *testing.T) {
	dialer := &mockDialer{results: map[string]Client{}}
	cache := NewCache(dialer, "eos", nil, WithFallbackHost("100.64.0.2"))

	_, err := cache.Acquire(context.Background(), "ops", "other-box")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if dialer.dialCalls() != 1 {
		t.Errorf("dial calls = %d, want 1 (fallback only applies to the default host)", dialer.dialCalls())
	}
}

func TestAcquireAllCandidatesFail(t *testing.T) {
	dialer := &mockDialer{results: map[string]Client{}}
	cache := NewCache(dialer, "eos", nil, WithFallbackHost("100.64.0.2"))

	_, err := cache.Acquire(context.Background(), "ops", "eos")
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %v, want *ConnectionError", err)
	}
	if connErr.Key != "ops@eos" {
		t.Errorf("key = %q, want ops@eos", connErr.Key)
	}
	if connErr.Last == nil {
		t.Error("ConnectionError does not carry the last dial error")
	}
	if dialer.dialCalls() != 2 {
		t.Errorf("dial calls = %d, want 2", dialer.dialCalls())
	}
	if cache.Len() != 0 {
		t.Errorf("cache size = %d, want 0 after failure", cache.Len())
	}
}

func TestAcquireConcurrentSingleDial(t *testing.T) {
	client := &mockClient{alive: true}
	dialer := &mockDialer{results: map[string]Client{"eos": client}, delay: 20 * time.Millisecond}
	cache := NewCache(dialer, "eos", nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Acquire(context.Background(), "ops", "eos")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if dialer.dialCalls() != 1 {
		t.Errorf("dial calls = %d, want 1 for concurrent acquires of one key", dialer.dialCalls())
	}
}

func TestExecuteRunsThroughCachedConnection(t *testing.T) {
	client := &mockClient{alive: true, execRes: ExecResult{Stdout: "ok\n"}}
	dialer := &mockDialer{results: map[string]Client{"eos": client}}
	cache := NewCache(dialer, "eos", nil)

	res, err := cache.Execute(context.Background(), "ops", "eos", "uptime", time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stdout != "ok\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if len(client.execCalls) != 1 || client.execCalls[0] != "uptime" {
		t.Errorf("exec calls = %v", client.execCalls)
	}
}

func TestCloseEmptiesCache(t *testing.T) {
	client := &mockClient{alive: true}
	dialer := &mockDialer{results: map[string]Client{"eos": client}}
	cache := NewCache(dialer, "eos", nil)

	if _, err := cache.Acquire(context.Background(), "ops", "eos"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	cache.Close()

	if cache.Len() != 0 {
		t.Errorf("cache size = %d, want 0", cache.Len())
	}
	if !client.closed {
		t.Error("cached connection was not closed")
	}
}
