package run_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/toejough/behave/behavegen/run"
	registry "github.com/toejough/behave/behavegen/run/3_registry"
	output "github.com/toejough/behave/behavegen/run/7_output"
)

const storeTemplate = `package shop_test

import (
	"testing"

	"example.com/shop"
	"example.com/shop/clock"
)

func TestStore(t *testing.T) {
	m := new_mock!(shop.Store[string, int] for StoreMock)
	c := new_mock!(clock.Clock)
	given! {
		m.Get("a") then_return 1, nil always
		c.Now() then_return 5 always
	}
	_ = c
}
`

func TestRun(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := writeModule(t, storeTemplate)
	out := &bytes.Buffer{}

	err := run.Run(context.Background(), []string{root}, run.DefaultConfig(), run.OSFileSystem{}, zap.NewNop(), out)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out.String()).To(ContainSubstring("generated_store_test.go written successfully."))
	g.Expect(out.String()).To(ContainSubstring("generated_behave_mocks_test.go written successfully."))

	expanded := readFile(t, filepath.Join(root, "generated_store_test.go"))
	g.Expect(expanded).To(ContainSubstring("m := NewStoreMock(t)"))
	g.Expect(expanded).To(ContainSubstring("m.AddGivenBehaviourForTrait1Get("))
	g.Expect(expanded).To(ContainSubstring("c.AddGivenBehaviourForTrait2Now("))

	mocks := readFile(t, filepath.Join(root, "generated_behave_mocks_test.go"))
	g.Expect(mocks).To(ContainSubstring("package shop_test"))
	g.Expect(mocks).To(ContainSubstring(`clock "example.com/shop/clock"`))
	g.Expect(mocks).To(ContainSubstring("func (m *StoreMock) Get(arg1 string) (int, error) {"))
	g.Expect(mocks).To(ContainSubstring("type Trait2NowResults = int64"))

	// regenerating in check mode finds nothing stale
	cfg := run.DefaultConfig()
	cfg.Check = true

	err = run.Run(context.Background(), []string{root}, cfg, run.OSFileSystem{}, zap.NewNop(), out)
	g.Expect(err).NotTo(HaveOccurred())

	writeFile(t, filepath.Join(root, "store.behave"), storeTemplate+"\nvar extra = 1\n")

	err = run.Run(context.Background(), []string{root}, cfg, run.OSFileSystem{}, zap.NewNop(), out)
	g.Expect(err).To(MatchError(output.ErrStale))
	g.Expect(err.Error()).To(ContainSubstring("+var extra = 1"))
}

func TestRunWritesNothingOnError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	good := writeModule(t, storeTemplate)
	bad := writeModule(t, "package shop_test\n\nimport \"example.com/shop\"\n\nvar m = new_mock!(shop.Missing)\n")

	err := run.Run(context.Background(), []string{good, bad}, run.DefaultConfig(), run.OSFileSystem{}, zap.NewNop(),
		&bytes.Buffer{})
	g.Expect(err).To(MatchError(registry.ErrUnknownTrait))
	g.Expect(err.Error()).To(ContainSubstring("store.behave:5:"))

	_, err = os.Stat(filepath.Join(good, "generated_behave_mocks_test.go"))
	g.Expect(os.IsNotExist(err)).To(BeTrue())
}

func TestRunSkipsDirectoriesWithoutTemplates(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	files, err := run.Package(context.Background(), t.TempDir(), run.DefaultConfig(), run.OSFileSystem{}, zap.NewNop())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(files).To(BeEmpty())
}

func TestList(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := writeModule(t, storeTemplate)

	listing, err := run.List(root, run.DefaultConfig(), run.OSFileSystem{}, zap.NewNop())
	g.Expect(err).NotTo(HaveOccurred())

	keys := make([]string, 0, len(listing.Interfaces))
	for _, info := range listing.Interfaces {
		keys = append(keys, info.Key)
	}

	g.Expect(keys).To(Equal([]string{"example.com/shop.Store", "example.com/shop/clock.Clock"}))
	g.Expect(listing.Usages).To(HaveLen(2))
	g.Expect(listing.Usages[0]).To(Equal(run.Usage{ID: 1, Type: "shop.Store[string, int]", Mocks: []string{"StoreMock"}}))
	g.Expect(listing.Usages[1].Type).To(Equal("clock.Clock"))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	return string(data)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		t.Fatal(err)
	}

	err = os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatal(err)
	}
}

// writeModule lays out example.com/shop with a clock subpackage and one
// template, returning the module root.
func writeModule(t *testing.T, template string) string {
	t.Helper()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/shop\n\ngo 1.22\n")
	writeFile(t, filepath.Join(root, "shop.go"), `package shop

//behave:mockable
type Store[K comparable, V any] interface {
	Get(key K) (V, error)
}
`)
	writeFile(t, filepath.Join(root, "clock", "clock.go"), `package clock

//behave:mockable
type Clock interface {
	Now() int64
}
`)
	writeFile(t, filepath.Join(root, "store.behave"), template)

	return root
}
