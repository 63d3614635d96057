package unitofwork_test

import (
	"context"
	"errors"
	"sync"

	"github.com/AntonStoeckl/uow-eventbus-go/unitofwork"
)

var errQueryNotSupported = errors.New("fake engine does not support queries")

// fakeEngine records the lifecycle of every branch as "begin:<conn>", "commit:<conn>", "rollback:<conn>"
// and the statements executed as "exec:<conn>:<query>".
type fakeEngine struct {
	mu          sync.Mutex
	log         []string
	beginErrs   map[string]error
	commitErrs  map[string]error
	txOptions   []unitofwork.TxOptions
	branchCtxs  []context.Context
	connections int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		beginErrs:  make(map[string]error),
		commitErrs: make(map[string]error),
	}
}

func (e *fakeEngine) Begin(ctx context.Context, connectionString string, options unitofwork.TxOptions) (unitofwork.Branch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.beginErrs[connectionString]; err != nil {
		return nil, err
	}

	e.log = append(e.log, "begin:"+connectionString)
	e.txOptions = append(e.txOptions, options)
	e.branchCtxs = append(e.branchCtxs, ctx)

	return &fakeBranch{engine: e, connectionString: connectionString}, nil
}

func (e *fakeEngine) Conn(_ context.Context, connectionString string) (unitofwork.DBTX, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connections++

	return &fakeConn{engine: e, connectionString: connectionString}, nil
}

func (e *fakeEngine) record(entry string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log = append(e.log, entry)
}

func (e *fakeEngine) Log() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.log...)
}

func (e *fakeEngine) BeginCount() int {
	count := 0
	for _, entry := range e.Log() {
		if len(entry) > 6 && entry[:6] == "begin:" {
			count++
		}
	}

	return count
}

type fakeConn struct {
	engine           *fakeEngine
	connectionString string
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ ...any) (unitofwork.Result, error) {
	c.engine.record("exec:" + c.connectionString + ":" + query)
	return fakeResult(1), nil
}

func (c *fakeConn) QueryContext(_ context.Context, _ string, _ ...any) (unitofwork.Rows, error) {
	return nil, errQueryNotSupported
}

type fakeBranch struct {
	engine           *fakeEngine
	connectionString string
}

func (b *fakeBranch) ExecContext(_ context.Context, query string, _ ...any) (unitofwork.Result, error) {
	b.engine.record("exec:" + b.connectionString + ":" + query)
	return fakeResult(1), nil
}

func (b *fakeBranch) QueryContext(_ context.Context, _ string, _ ...any) (unitofwork.Rows, error) {
	return nil, errQueryNotSupported
}

func (b *fakeBranch) Commit(_ context.Context) error {
	b.engine.mu.Lock()
	err := b.engine.commitErrs[b.connectionString]
	b.engine.mu.Unlock()

	if err != nil {
		return err
	}

	b.engine.record("commit:" + b.connectionString)

	return nil
}

func (b *fakeBranch) Rollback(_ context.Context) error {
	b.engine.record("rollback:" + b.connectionString)
	return nil
}

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}

// dbResolver returns the enlistment's DB as the persistence context.
func dbResolver(_ context.Context, enlistment unitofwork.Enlistment) (unitofwork.DBTX, error) {
	return enlistment.DB, nil
}

func enlistmentResolver(_ context.Context, enlistment unitofwork.Enlistment) (unitofwork.Enlistment, error) {
	return enlistment, nil
}
