package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

var (
	pdbBinary     string
	pdbBinaryErr  error
	pdbBinaryOnce sync.Once
)

// getPDBBinary builds pdb once per test run.
func getPDBBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping CLI test in short mode")
	}
	pdbBinaryOnce.Do(func() {
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			pdbBinaryErr = os.ErrInvalid
			return
		}
		moduleRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

		tmpDir, err := os.MkdirTemp("", "pdb-test-*")
		if err != nil {
			pdbBinaryErr = err
			return
		}
		pdbBinary = filepath.Join(tmpDir, "pdb")

		cmd := exec.Command("go", "build", "-o", pdbBinary, "./cmd/pdb")
		cmd.Dir = moduleRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			pdbBinaryErr = &buildError{output: string(output), err: err}
		}
	})
	if pdbBinaryErr != nil {
		t.Fatalf("failed to build pdb: %v", pdbBinaryErr)
	}
	return pdbBinary
}

type buildError struct {
	output string
	err    error
}

func (e *buildError) Error() string {
	return e.err.Error() + ": " + e.output
}

const cliSchema = `{
	"tables": {
		"users": {"fields": {"name": "string", "email": "string", "age": "integer"}},
		"posts": {"fields": {"title": "string", "body": "string", "author": "integer"}}
	}
}`

// cliEnv is a data directory plus an isolated environment to run pdb in.
type cliEnv struct {
	t       *testing.T
	bin     string
	work    string
	dataDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	bin := getPDBBinary(t)
	work := t.TempDir()
	dataDir := filepath.Join(work, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "schema.json"), []byte(cliSchema), 0644); err != nil {
		t.Fatal(err)
	}
	return &cliEnv{t: t, bin: bin, work: work, dataDir: dataDir}
}

// run executes pdb and returns stdout and the exit code.
func (e *cliEnv) run(args ...string) (string, int) {
	e.t.Helper()
	cmd := exec.Command(e.bin, append([]string{"--data-dir", e.dataDir}, args...)...)
	cmd.Dir = e.work
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+filepath.Join(e.work, "config"),
		"PDB_DATA_DIR=",
		"PDB_SCHEMA=",
		"PDB_LOG_LEVEL=error",
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode()
		}
		e.t.Fatalf("running pdb %v: %v", args, err)
	}
	return string(out), 0
}

// mustRun executes pdb and fails the test on a non-zero exit.
func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, code := e.run(args...)
	if code != 0 {
		e.t.Fatalf("pdb %v exited %d: %s", args, code, out)
	}
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("parsing output: %v\n%s", err, out)
	}
	return v
}

func TestCLIUsersScenario(t *testing.T) {
	e := newCLIEnv(t)

	john := decode[InsertResult](t, e.mustRun("insert", "users", `{"name":"John","email":"john@x.com","age":30}`))
	jane := decode[InsertResult](t, e.mustRun("insert", "users", `{"name":"Jane","email":"jane@x.com","age":25}`))
	if john.ID != 1 || jane.ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", john.ID, jane.ID)
	}

	older := decode[[]map[string]any](t, e.mustRun("query", "users", `{"age":{"gt":25}}`))
	if len(older) != 1 || older[0]["name"] != "John" {
		t.Errorf("query gt 25 = %v", older)
	}

	if res := decode[DeleteResult](t, e.mustRun("delete", "users", "1")); !res.Deleted {
		t.Error("delete reported no match")
	}
	if res := decode[DeleteResult](t, e.mustRun("delete", "users", "1")); res.Deleted {
		t.Error("second delete reported a match")
	}
	all := decode[[]map[string]any](t, e.mustRun("query", "users"))
	if len(all) != 1 || all[0]["name"] != "Jane" {
		t.Errorf("after delete = %v", all)
	}

	next := decode[InsertResult](t, e.mustRun("insert", "users", `{"name":"Jim"}`))
	if next.ID != 3 {
		t.Errorf("next id = %d, want 3", next.ID)
	}
}

func TestCLIPatchAndGet(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun("insert", "posts", `{"title":"My First Post","body":"This is a test post.","author":1}`)

	res := decode[PatchResult](t, e.mustRun("patch", "posts", "1", `{"body":"Updated post content."}`))
	if !res.Updated {
		t.Error("patch reported no update")
	}
	if res := decode[PatchResult](t, e.mustRun("patch", "posts", "7", `{"body":"x"}`)); res.Updated {
		t.Error("patch of missing id reported an update")
	}

	post := decode[map[string]any](t, e.mustRun("get", "posts", "1"))
	if post["body"] != "Updated post content." || post["title"] != "My First Post" {
		t.Errorf("post = %v", post)
	}

	if _, code := e.run("get", "posts", "9"); code != ExitNotFound {
		t.Errorf("get missing exit code = %d, want %d", code, ExitNotFound)
	}
}

func TestCLIValidationFailure(t *testing.T) {
	e := newCLIEnv(t)

	out, code := e.run("insert", "users", `{"name":123}`)
	if code != ExitDataError {
		t.Fatalf("exit code = %d, want %d", code, ExitDataError)
	}
	resp := decode[ErrorResponse](t, out)
	if !strings.Contains(resp.Error, "field 'name' in table 'users'") {
		t.Errorf("error = %q", resp.Error)
	}

	data, err := os.ReadFile(filepath.Join(e.dataDir, "error.log"))
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	if !strings.HasPrefix(string(data), "[") || !strings.Contains(string(data), "Validation failed for table 'users'") {
		t.Errorf("error log = %q", data)
	}
}

func TestCLIOutputFormats(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun("insert", "users", `{"name":"a","age":1}`)
	e.mustRun("insert", "users", `{"name":"b","age":2}`)

	csvOut := e.mustRun("query", "users", "--csv")
	if !strings.HasPrefix(csvOut, "id,age,name\n1,1,a\n") {
		t.Errorf("csv = %q", csvOut)
	}

	jsonl := e.mustRun("query", "users", "--jsonl")
	if n := strings.Count(jsonl, "\n"); n != 2 {
		t.Errorf("jsonl has %d lines, want 2", n)
	}

	human := e.mustRun("query", "users", "--human")
	if !strings.Contains(human, "(2 rows)") {
		t.Errorf("human = %q", human)
	}
}

func TestCLITablesAndSQL(t *testing.T) {
	e := newCLIEnv(t)
	e.mustRun("insert", "users", `{"name":"John","age":30}`)
	e.mustRun("insert", "posts", `{"title":"Hello","author":1}`)

	tables := decode[TablesResult](t, e.mustRun("tables"))
	if len(tables.Tables) != 2 {
		t.Fatalf("tables = %+v", tables)
	}

	if _, code := e.run("sql", "SELECT 1"); code != ExitConfigError {
		t.Errorf("sql before sync exit code = %d, want %d", code, ExitConfigError)
	}

	e.mustRun("sync")
	rows := decode[[]map[string]any](t, e.mustRun("sql",
		"SELECT u.name AS name, p.title AS title FROM posts p JOIN users u ON u.id = p.author"))
	if len(rows) != 1 || rows[0]["name"] != "John" || rows[0]["title"] != "Hello" {
		t.Errorf("join rows = %v", rows)
	}

	e.mustRun("insert", "users", `{"name":"Late"}`)
	if _, code := e.run("sql", "SELECT * FROM users"); code != ExitError {
		t.Errorf("sql on stale mirror exit code = %d, want %d", code, ExitError)
	}
}

func TestCLIConfigErrorShowsTip(t *testing.T) {
	e := newCLIEnv(t)
	file := filepath.Join(e.work, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(e.bin, "--data-dir", file, "tables")
	cmd.Dir = e.work
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+filepath.Join(e.work, "config"), "PDB_DATA_DIR=")
	_, err := cmd.Output()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	if exitErr.ExitCode() != ExitConfigError {
		t.Errorf("exit code = %d, want %d", exitErr.ExitCode(), ExitConfigError)
	}
	if !strings.Contains(string(exitErr.Stderr), "Tip: Create") {
		t.Errorf("stderr missing config tip: %s", exitErr.Stderr)
	}
}
