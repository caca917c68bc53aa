package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	. "github.com/onsi/gomega"

	"github.com/toejough/behave/behavegen/run"
	output "github.com/toejough/behave/behavegen/run/7_output"
)

const storeTemplate = `package shop_test

import (
	"testing"

	"example.com/shop"
)

func TestStore(t *testing.T) {
	m := new_mock!(shop.Store[string, int] for StoreMock)
	given! {
		m.Get("a") then_return 1, nil always
	}
	expect_interactions! {
		m.Get("a") times 1
	}
}
`

func TestVersion(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	out, err := execute(t, "version")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out).To(HavePrefix("behavegen "))
}

func TestPackageDirs(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := t.TempDir()
	for _, dir := range []string{"a/b", ".hidden", "_skip", "testdata", "vendor"} {
		g.Expect(os.MkdirAll(filepath.Join(root, dir), 0o750)).To(Succeed())
	}

	dirs, err := packageDirs([]string{root + "/..."})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dirs).To(Equal([]string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "b")}))

	dirs, err = packageDirs(nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dirs).To(Equal([]string{"."}))

	dirs, err = packageDirs([]string{"./x", "x/", "y"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dirs).To(Equal([]string{"x", "y"}))

	_, err = packageDirs([]string{filepath.Join(root, "missing") + "/..."})
	g.Expect(err).To(HaveOccurred())
}

func TestParse(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "store.behave")
	g.Expect(os.WriteFile(path, []byte(storeTemplate), 0o600)).To(Succeed())

	out, err := execute(t, "parse", path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out).To(ContainSubstring("- macro: new_mock\n"))
	g.Expect(out).To(ContainSubstring("var: m\n"))
	g.Expect(out).To(ContainSubstring("type: StoreMock\n"))
	g.Expect(out).To(ContainSubstring("- shop.Store[string, int]\n"))
	g.Expect(out).To(ContainSubstring("- macro: given\n"))
	g.Expect(out).To(ContainSubstring("- macro: expect_interactions\n"))
	g.Expect(out).To(ContainSubstring("method: Get\n"))
	g.Expect(out).To(ContainSubstring(`text: m.Get("a") times 1`))

	_, err = execute(t, "parse")
	g.Expect(err).To(HaveOccurred())

	_, err = execute(t, "parse", filepath.Join(t.TempDir(), "missing.behave"))
	g.Expect(err).To(MatchError(ContainSubstring("failed to read template")))
}

func TestList(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := writeModule(t)

	out, err := execute(t, "list", root)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out).To(ContainSubstring(root))
	g.Expect(out).To(ContainSubstring("example.com/shop.Store"))
	g.Expect(out).To(ContainSubstring("K, V"))
	g.Expect(out).To(ContainSubstring("shop.Store[string, int]"))
	g.Expect(out).To(ContainSubstring("StoreMock"))

	_, err = os.Stat(filepath.Join(root, "generated_store_test.go"))
	g.Expect(os.IsNotExist(err)).To(BeTrue())
}

func TestGenerateAndCheck(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := writeModule(t)

	_, err := execute(t, "--check", root)
	g.Expect(err).To(MatchError(output.ErrStale))

	out, err := execute(t, root)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out).To(ContainSubstring("generated_behave_mocks_test.go written successfully."))

	_, err = execute(t, "generate", "--check", root)
	g.Expect(err).NotTo(HaveOccurred())
}

func TestGenerateReadsConfigFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := writeModule(t)
	config := filepath.Join(t.TempDir(), "behave.yaml")
	g.Expect(os.WriteFile(config, []byte("mocks_file: mocks_test.go\ndebug:\n  dump: stdout\n"), 0o600)).To(Succeed())

	out, err := execute(t, "generate", "--config", config, root)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out).To(ContainSubstring("// ==== " + filepath.Join(root, "mocks_test.go") + " ===="))

	_, err = os.Stat(filepath.Join(root, "mocks_test.go"))
	g.Expect(err).NotTo(HaveOccurred())

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), root)
	g.Expect(err).To(MatchError(ContainSubstring("failed to read config")))
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := execute(t, "list", "--log-level", "loud", writeModule(t))
	g.Expect(err).To(MatchError(ContainSubstring("invalid log.level")))
}

func TestTriggersGeneration(t *testing.T) {
	t.Parallel()

	cfg := run.DefaultConfig()

	for _, tc := range []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"template written", fsnotify.Event{Name: "pkg/store.behave", Op: fsnotify.Write}, true},
		{"go file created", fsnotify.Event{Name: "pkg/store.go", Op: fsnotify.Create}, true},
		{"go file removed", fsnotify.Event{Name: "pkg/store.go", Op: fsnotify.Remove}, true},
		{"chmod only", fsnotify.Event{Name: "pkg/store.go", Op: fsnotify.Chmod}, false},
		{"generated test", fsnotify.Event{Name: "pkg/generated_store_test.go", Op: fsnotify.Write}, false},
		{"mocks file", fsnotify.Event{Name: "pkg/" + cfg.MocksFile, Op: fsnotify.Write}, false},
		{"hidden file", fsnotify.Event{Name: "pkg/.store.behave.swp", Op: fsnotify.Write}, false},
		{"other file", fsnotify.Event{Name: "pkg/README.md", Op: fsnotify.Write}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			NewWithT(t).Expect(triggersGeneration(tc.event, cfg)).To(Equal(tc.want))
		})
	}
}

func TestWatchRegeneratesAfterChanges(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := writeModule(t)
	ctx, cancel := context.WithCancel(context.Background())

	out := &syncBuffer{}
	done := make(chan error, 1)

	go func() {
		cmd := newRootCmd()
		cmd.SetOut(out)
		cmd.SetErr(&syncBuffer{})
		cmd.SetArgs([]string{"watch", "--debounce-ms", "20", root})
		done <- cmd.ExecuteContext(ctx)
	}()

	g.Eventually(out.String).Should(ContainSubstring("generated_store_test.go written successfully."))

	// the watcher is up before the first generation
	err := os.WriteFile(filepath.Join(root, "store.behave"), []byte(storeTemplate+"\nvar extra = 1\n"), 0o600)
	g.Expect(err).NotTo(HaveOccurred())

	g.Eventually(func() string {
		data, _ := os.ReadFile(filepath.Join(root, "generated_store_test.go"))

		return string(data)
	}).WithTimeout(5 * time.Second).Should(ContainSubstring("extra = 1"))

	cancel()
	g.Eventually(done).Should(Receive(BeNil()))
}

// execute runs behavegen with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}

	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

// writeModule lays out example.com/shop with one template and returns its root.
func writeModule(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	files := map[string]string{
		"go.mod": "module example.com/shop\n\ngo 1.22\n",
		"shop.go": `package shop

//behave:mockable
type Store[K comparable, V any] interface {
	Get(key K) (V, error)
}
`,
		"store.behave": storeTemplate,
	}

	for name, content := range files {
		err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o600)
		if err != nil {
			t.Fatal(err)
		}
	}

	return root
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
