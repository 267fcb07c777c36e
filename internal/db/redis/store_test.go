package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)

	s := NewStoreForTest(c)
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_TimeoutKeepsLastError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	s := NewStoreForTest(c)
	err := s.WaitForReady(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from the last ping, got %v", err)
	}
}

func TestConfig_ClientOption(t *testing.T) {
	if _, err := (Config{}).ClientOption(); err == nil {
		t.Fatal("expected error without addrs")
	}

	opt, err := Config{
		Addrs:       []string{"a:6379", "b:6379"},
		DB:          2,
		DialTimeout: 3 * time.Second,
		ClientName:  "nlquery-test",
	}.ClientOption()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opt.DisableCache || !opt.AlwaysRESP2 {
		t.Error("expected cache off and RESP2 forced")
	}
	if opt.SelectDB != 2 || opt.ClientName != "nlquery-test" || len(opt.InitAddress) != 2 {
		t.Errorf("unexpected option: %+v", opt)
	}
	if opt.Dialer.Timeout != 3*time.Second {
		t.Errorf("expected dial timeout 3s, got %s", opt.Dialer.Timeout)
	}
}

func TestOpErr_ServerErrorIsNotUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "HSET" })).
		Return(mock.Result(mock.RedisError("WRONGTYPE Operation against a key holding the wrong kind of value")))

	s := NewStoreForTest(c)
	err := s.HSet(context.Background(), "k", map[string]string{"f": "v"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, db.ErrUnavailable) {
		t.Errorf("server error must not be classified as unavailable: %v", err)
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestIsRedisErr(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
		Return(mock.Result(mock.RedisError("Unknown Index Name")))

	err := NewStoreForTest(c).do(context.Background(), c.B().Arbitrary("FT.INFO").Args("idx").Build()).Error()
	if !isRedisErr(err, "unknown index name") {
		t.Errorf("isRedisErr should match case-insensitively: %v", err)
	}
	if isRedisErr(context.Canceled, "canceled") {
		t.Error("non-server errors never match")
	}
}

// --- hash.go tests ---

func TestHSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET" && cmd[1] == "mykey"
		})).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	err := s.HSet(context.Background(), "mykey", map[string]string{"f1": "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.HSet(context.Background(), "mykey", map[string]string{"f": "v"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "mykey")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"f1": mock.RedisString("v1"),
			"f2": mock.RedisString("v2"),
		})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["f1"] != "v1" || m["f2"] != "v2" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestReplaceMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var sent [][]string
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			for _, cmd := range cmds {
				sent = append(sent, cmd.Commands())
			}
			return []rueidis.RedisResult{
				mock.Result(mock.RedisString("OK")),
				mock.Result(mock.RedisString("QUEUED")),
				mock.Result(mock.RedisString("QUEUED")),
				mock.Result(mock.RedisString("QUEUED")),
				mock.Result(mock.RedisString("QUEUED")),
				mock.Result(mock.RedisArray(
					mock.RedisInt64(0), mock.RedisInt64(1),
					mock.RedisInt64(1), mock.RedisInt64(1),
				)),
			}
		})

	s := NewStoreForTest(c)
	err := s.ReplaceMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f1": "v1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"MULTI", "DEL", "HSET", "DEL", "HSET", "EXEC"}
	if len(sent) != len(want) {
		t.Fatalf("sent %d commands, want %d", len(sent), len(want))
	}
	for i, w := range want {
		if sent[i][0] != w {
			t.Errorf("command %d = %s, want %s", i, sent[i][0], w)
		}
	}
	if sent[1][1] != "k1" || sent[4][1] != "k2" {
		t.Errorf("unexpected keys: %v", sent)
	}
}

func TestReplaceMulti_Aborted(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisString("QUEUED")),
			mock.Result(mock.RedisString("QUEUED")),
			mock.Result(mock.RedisNil()),
		})

	s := NewStoreForTest(c)
	err := s.ReplaceMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
	})
	if !errors.Is(err, db.ErrTxAborted) {
		t.Errorf("expected ErrTxAborted, got %v", err)
	}
}

func TestReplaceMulti_ReplyError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisString("QUEUED")),
			mock.Result(mock.RedisString("QUEUED")),
			mock.Result(mock.RedisArray(mock.RedisInt64(0), mock.RedisError("OOM command not allowed"))),
		})

	s := NewStoreForTest(c)
	err := s.ReplaceMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestReplaceMulti_ConnectionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	failed := mock.ErrorResult(context.DeadlineExceeded)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{failed, failed, failed, failed})

	s := NewStoreForTest(c)
	err := s.ReplaceMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
	})
	if !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestReplaceMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil) // client not called
	if err := s.ReplaceMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExistsMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(0)),
		})

	s := NewStoreForTest(c)
	got, err := s.ExistsMulti(context.Background(), []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("unexpected results: %v", got)
	}
}

func TestExistsMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil)
	got, err := s.ExistsMulti(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestDel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "mykey")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Del(context.Background(), "mykey"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExists_True(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXISTS", "mykey")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	exists, err := s.Exists(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected true")
	}
}

func TestScan_MultiPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(42), // cursor=42 means more
					mock.RedisArray(mock.RedisString("key1")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0), // cursor=0 means done
				mock.RedisArray(mock.RedisString("key2")),
			))
		}).Times(2)

	s := NewStoreForTest(c)
	keys, err := s.Scan(context.Background(), "prefix:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisString("hello")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == "mykey" && len(cmd) == 5 && cmd[3] == "EX" && cmd[4] == "60"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_ZeroKeepsForever(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrBy_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCRBY", "counter", "42")).
		Return(mock.Result(mock.RedisInt64(42)))

	s := NewStoreForTest(c)
	if err := s.IncrBy(context.Background(), "counter", 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_WithNX(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "mykey", "3600", "NX")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Expire(context.Background(), "mykey", time.Hour, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_WithoutNX(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "mykey", "60")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Expire(context.Background(), "mykey", time.Minute, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	idx := db.NewIndex("test:idx").Prefix("test:").Facet("gender").MustBuild()
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	idx := &db.IndexDefinition{
		Name:   "test:idx",
		Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}},
	}
	err := s.CreateIndex(context.Background(), idx)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_DeleteDocs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx", "DD")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "test:idx", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_KeepDocs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "test:idx", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx", "DD")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	err := s.DropIndex(context.Background(), "test:idx", true)
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists_False(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	exists, err := s.IndexExists(context.Background(), "test:idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected false")
	}
}

func assertContains(t *testing.T, args []string, want string) {
	t.Helper()
	for _, a := range args {
		if a == want {
			return
		}
	}
	t.Errorf("expected %q in args %v", want, args)
}

// --- search.go tests ---

func TestSearchFilter_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var query string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.SEARCH" {
				return false
			}
			query = cmd[2]
			return true
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("people:1"),
			mock.RedisArray(mock.RedisString("gender"), mock.RedisString("boy")),
			mock.RedisString("people:2"),
			mock.RedisArray(mock.RedisString("gender"), mock.RedisString("boy")),
		)))

	boy, _ := filter.NewClause("gender", filter.Eq, "boy")
	s := NewStoreForTest(c)
	result, err := s.SearchFilter(context.Background(), &db.FilterQuery{
		IndexName: "people:idx",
		Filters:   filter.All(boy),
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "@gender:{boy}" {
		t.Errorf("query = %q", query)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Entries[0].Key != "people:1" || result.Entries[0].Fields["gender"] != "boy" {
		t.Errorf("unexpected entry: %+v", result.Entries[0])
	}
}

func TestSearchFilter_MatchAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*" && cmd[3] == "LIMIT" && cmd[4] == "5" && cmd[5] == "20"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.SearchFilter(context.Background(), &db.FilterQuery{
		IndexName: "people:idx",
		Offset:    5,
		Limit:     20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
}

func TestSearchFilter_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchFilter(ctx, &db.FilterQuery{Limit: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchFilter(ctx, &db.FilterQuery{IndexName: "idx"}); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestSearchFilter_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.SearchFilter(context.Background(), &db.FilterQuery{IndexName: "idx", Limit: 10})
	if !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestSearchText_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var args []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.SEARCH" {
				return false
			}
			args = cmd
			return true
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("people:1"),
			mock.RedisString("0.85"),
			mock.RedisArray(
				mock.RedisString("_source"),
				mock.RedisString("Balu likes curd rice"),
			),
		)))

	s := NewStoreForTest(c)
	result, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName: "people:idx",
		Attribute: "source",
		Terms:     []string{"curd", "rice"},
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[2] != "@source:(curd|rice)" {
		t.Errorf("query = %q", args[2])
	}
	assertContains(t, args, "WITHSCORES")
	if result.Total != 1 {
		t.Fatalf("expected total 1, got %d", result.Total)
	}
	if result.Entries[0].Score < 0.84 || result.Entries[0].Score > 0.86 {
		t.Errorf("expected score ~0.85, got %f", result.Entries[0].Score)
	}
}

func TestSearchText_WithFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "@gender:{girl} @source:(rice)"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	girl, _ := filter.NewClause("gender", filter.Eq, "girl")
	s := NewStoreForTest(c)
	_, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName: "people:idx",
		Attribute: "source",
		Terms:     []string{"rice"},
		Filters:   filter.All(girl),
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchText_NoTerms(t *testing.T) {
	s := NewStoreForTest(nil) // client not called
	result, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName: "idx", Attribute: "source", Limit: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 || len(result.Entries) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestSearchText_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchText(ctx, &db.TextQuery{Attribute: "a", Terms: []string{"x"}, Limit: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchText(ctx, &db.TextQuery{IndexName: "idx", Terms: []string{"x"}, Limit: 10}); err == nil {
		t.Error("expected error for empty attribute")
	}
	if _, err := s.SearchText(ctx, &db.TextQuery{IndexName: "idx", Attribute: "a", Terms: []string{"x"}}); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestSearchCount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "idx", "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(42))))

	s := NewStoreForTest(c)
	count, err := s.SearchCount(context.Background(), "idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("expected 42, got %d", count)
	}
}

func TestSearchCount_NoIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisError("idx: no such index")))

	s := NewStoreForTest(c)
	_, err := s.SearchCount(context.Background(), "idx")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

// --- Filter building tests ---

func clause(t *testing.T, field string, op filter.Operator, value string) filter.Clause {
	t.Helper()
	c, err := filter.NewClause(field, op, value)
	if err != nil {
		t.Fatalf("NewClause: %v", err)
	}
	return c
}

func TestBuildFilter_Empty(t *testing.T) {
	if got := buildFilter(filter.Expression{}, nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestBuildFilter_And(t *testing.T) {
	expr := filter.All(
		clause(t, "gender", filter.Eq, "boy"),
		clause(t, "likes_color", filter.Eq, "blue"),
	)
	if got := buildFilter(expr, nil); got != `@gender:{boy} @likes_color:{blue}` {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestBuildFilter_Or(t *testing.T) {
	expr, _ := filter.NewExpression(filter.Or, []filter.Clause{
		clause(t, "likes_color", filter.Eq, "red"),
		clause(t, "likes_color", filter.Eq, "blue"),
	}, nil)
	if got := buildFilter(expr, nil); got != `(@likes_color:{red} | @likes_color:{blue})` {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestBuildFilter_NestedGroups(t *testing.T) {
	or, _ := filter.NewExpression(filter.Or, []filter.Clause{
		clause(t, "likes_color", filter.Eq, "red"),
		clause(t, "likes_color", filter.Eq, "blue"),
	}, nil)
	expr, _ := filter.NewExpression(filter.And,
		[]filter.Clause{clause(t, "gender", filter.Ne, "girl")},
		[]filter.Expression{or},
	)
	want := `-@gender:{girl} (@likes_color:{red} | @likes_color:{blue})`
	if got := buildFilter(expr, nil); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildFilter_Contains(t *testing.T) {
	expr := filter.All(clause(t, "likes_food", filter.Contains, "Curd Rice"))
	if got := buildFilter(expr, nil); got != `@likes_food__text:(curd rice)` {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestBuildFilter_TagEscaping(t *testing.T) {
	expr := filter.All(clause(t, "likes_food", filter.Eq, "curd rice"))
	if got := buildFilter(expr, nil); got != `@likes_food:{curd\ rice}` {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestBuildFilter_Numeric(t *testing.T) {
	numeric := map[string]bool{"age": true}
	tests := []struct {
		op   filter.Operator
		want string
	}{
		{filter.Eq, `@age:[7 7]`},
		{filter.Ne, `-@age:[7 7]`},
		{filter.Gt, `@age:[(7 +inf]`},
		{filter.Gte, `@age:[7 +inf]`},
		{filter.Lt, `@age:[-inf (7]`},
		{filter.Lte, `@age:[-inf 7]`},
	}
	for _, tt := range tests {
		expr := filter.All(clause(t, "age", tt.op, "7"))
		if got := buildFilter(expr, numeric); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestEscapeQuery(t *testing.T) {
	input := `hello "world" @user {tag}`
	escaped := escapeQuery(input)
	expected := `hello \"world\" \@user \{tag\}`
	if escaped != expected {
		t.Errorf("expected %q, got %q", expected, escaped)
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
