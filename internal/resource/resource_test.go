package resource

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	gitbackend "repoparser/internal/backends/git"
	"repoparser/internal/errors"
	"repoparser/internal/history"
	"repoparser/internal/processor"
	"repoparser/internal/scanner"
	"repoparser/internal/testutil"
)

var walkTime = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

// simpleFilesystem is a repo root with a README and one service that has a
// nested docs directory.
func simpleFilesystem() *scanner.Dir {
	return &scanner.Dir{
		Name: "test",
		Files: []scanner.File{
			{Name: "README.md", SrcPath: "README.md", Content: "This is a test"},
		},
		Dirs: []*scanner.Dir{
			{
				Name: "service-example",
				Path: "service-example",
				Files: []scanner.File{
					{
						Name:    "README.md",
						SrcPath: "service-example/README.md",
						Content: "---\ntype: service\nlanguage: python\n---\nThis is a service",
					},
				},
				Dirs: []*scanner.Dir{
					{
						Name: "docs",
						Path: "service-example/docs",
						Files: []scanner.File{
							{Name: "testing.md", SrcPath: "service-example/docs/testing.md", Content: "Something about testing"},
						},
					},
				},
			},
		},
	}
}

func mustBuild(t *testing.T, dir *scanner.Dir) (*Tree, []string) {
	t.Helper()
	tree, files, err := Build(dir, processor.Defaults(), walkTime)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree, files
}

func TestBuild(t *testing.T) {
	tree, files := mustBuild(t, simpleFilesystem())

	wantFiles := []string{"README.md", "service-example/README.md", "service-example/docs/testing.md"}
	if !reflect.DeepEqual(files, wantFiles) {
		t.Errorf("files = %v, want %v", files, wantFiles)
	}

	root := tree.Node(tree.Root())
	if root.Name != "test" || root.Type != TypeRepo || root.Kind != Directory || root.Parent != NoParent {
		t.Fatalf("root = %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}

	readme := tree.Node(root.Children[0])
	if readme.Type != TypeFile || readme.DocPath != "README.md" || readme.Content != "This is a test" {
		t.Errorf("root README = %+v", readme)
	}

	svcID := root.Children[1]
	svc := tree.Node(svcID)
	if svc.Name != "service-example" || svc.Type != "service" || svc.Kind != Directory {
		t.Errorf("service = %+v", svc)
	}
	if !reflect.DeepEqual(svc.Metadata, map[string]any{"language": "python"}) {
		t.Errorf("service metadata = %v", svc.Metadata)
	}
	if !reflect.DeepEqual(svc.Path, []string{"service-example"}) {
		t.Errorf("service path = %v", svc.Path)
	}

	var docPaths []string
	for _, id := range svc.Children {
		child := tree.Node(id)
		if child.Parent != svcID {
			t.Errorf("%s parent = %d, want %d", child.SrcPath, child.Parent, svcID)
		}
		docPaths = append(docPaths, child.DocPath)
	}
	if !reflect.DeepEqual(docPaths, []string{"README.md", "docs/testing.md"}) {
		t.Errorf("service children = %v", docPaths)
	}

	for i := 0; i < tree.Len(); i++ {
		if !tree.Node(NodeID(i)).LastModified.Equal(walkTime) {
			t.Errorf("node %d does not carry the placeholder time", i)
		}
	}
}

func TestBuild_ProcessorError(t *testing.T) {
	dir := &scanner.Dir{Name: "r", Files: []scanner.File{
		{Name: "bad.md", SrcPath: "bad.md", Content: "---\n: [\n---\n"},
	}}
	if _, _, err := Build(dir, processor.Defaults(), walkTime); err == nil || !strings.Contains(err.Error(), "bad.md") {
		t.Errorf("Build error = %v, want one naming bad.md", err)
	}
}

func TestBuild_MetadataMergedAcrossFiles(t *testing.T) {
	dir := &scanner.Dir{Name: "r", Dirs: []*scanner.Dir{{
		Name: "lib",
		Path: "lib",
		Files: []scanner.File{
			{Name: "A.md", SrcPath: "lib/A.md", Content: "---\ntype: library\nowner: a\n---\n"},
			{Name: "B.md", SrcPath: "lib/B.md", Content: "---\ntype: library\ntier: 2\n---\n"},
		},
	}}}

	tree, _ := mustBuild(t, dir)
	libs := tree.Collect("library")
	if len(libs) != 1 {
		t.Fatalf("Collect(library) = %v, want one resource", libs)
	}
	want := map[string]any{"owner": "a", "tier": 2}
	if got := tree.Node(libs[0]).Metadata; !reflect.DeepEqual(got, want) {
		t.Errorf("metadata = %v, want %v", got, want)
	}
}

func TestAnnotate(t *testing.T) {
	tree, _ := mustBuild(t, simpleFilesystem())
	cache := history.Cache{
		"README.md":                       time.Unix(1000, 0),
		"service-example/README.md":       time.Unix(3000, 0),
		"service-example/docs/testing.md": time.Unix(2000, 0),
	}

	if err := Annotate(tree, cache); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	root := tree.Node(tree.Root())
	if !root.LastModified.Equal(time.Unix(3000, 0)) {
		t.Errorf("root = %v, want 3000", root.LastModified)
	}
	svc := tree.Node(root.Children[1])
	if !svc.LastModified.Equal(time.Unix(3000, 0)) {
		t.Errorf("service = %v, want 3000", svc.LastModified)
	}
	assertDirectoryInvariant(t, tree)
}

func assertDirectoryInvariant(t *testing.T, tree *Tree) {
	t.Helper()
	_ = tree.Walk(func(id NodeID, _ int) error {
		n := tree.Node(id)
		if n.Kind != Directory || len(n.Children) == 0 {
			return nil
		}
		var latest time.Time
		for _, c := range n.Children {
			if ts := tree.Node(c).LastModified; ts.After(latest) {
				latest = ts
			}
		}
		if !n.LastModified.Equal(latest) {
			t.Errorf("directory %q = %v, want max of children %v", n.SrcPath, n.LastModified, latest)
		}
		return nil
	})
}

func TestAnnotate_Idempotent(t *testing.T) {
	tree, files := mustBuild(t, simpleFilesystem())
	cache := history.Cache{}
	for i, f := range files {
		cache[f] = time.Unix(int64(100*(i+1)), 0)
	}

	if err := Annotate(tree, cache); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	first, _ := json.Marshal(tree)
	if err := Annotate(tree, cache); err != nil {
		t.Fatalf("second Annotate: %v", err)
	}
	second, _ := json.Marshal(tree)

	if string(first) != string(second) {
		t.Errorf("second annotate changed the tree:\n%s\n%s", first, second)
	}
}

func TestAnnotate_EmptyDirectoryKeepsPlaceholder(t *testing.T) {
	dir := &scanner.Dir{Name: "r", Dirs: []*scanner.Dir{{
		Name:  "svc",
		Path:  "svc",
		Files: []scanner.File{{Name: "svc.md", SrcPath: "svc/svc.md", Content: "---\ntype: service\n---\n"}},
	}}}
	tree := NewTree("r", TypeRepo, walkTime)
	empty := tree.AddChild(tree.Root(), Node{Name: "empty", Kind: Directory, Type: "service", LastModified: walkTime})

	if err := Annotate(tree, history.Cache{}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !tree.Node(empty).LastModified.Equal(walkTime) {
		t.Errorf("empty directory = %v, want placeholder", tree.Node(empty).LastModified)
	}

	built, _ := mustBuild(t, dir)
	if err := Annotate(built, history.Cache{"svc/svc.md": time.Unix(5, 0)}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !built.Node(built.Root()).LastModified.Equal(time.Unix(5, 0)) {
		t.Errorf("root = %v, want 5", built.Node(built.Root()).LastModified)
	}
}

func TestAnnotate_CacheCoverage(t *testing.T) {
	tree, _ := mustBuild(t, simpleFilesystem())
	cache := history.Cache{
		"README.md":                 time.Unix(1000, 0),
		"service-example/README.md": time.Unix(3000, 0),
	}

	err := Annotate(tree, cache)
	if !errors.IsCode(err, errors.CacheCoverage) {
		t.Fatalf("error = %v, want CACHE_COVERAGE", err)
	}
	if !strings.Contains(err.Error(), "service-example/docs/testing.md") {
		t.Errorf("error should name the missing file: %v", err)
	}
	for i := 0; i < tree.Len(); i++ {
		if !tree.Node(NodeID(i)).LastModified.Equal(walkTime) {
			t.Errorf("node %d modified despite the failure", i)
		}
	}
}

func TestWalkAndCollect(t *testing.T) {
	tree, _ := mustBuild(t, simpleFilesystem())

	var visited []string
	_ = tree.Walk(func(id NodeID, depth int) error {
		visited = append(visited, strings.Repeat(" ", depth)+tree.Node(id).Name)
		return nil
	})
	want := []string{"test", " README.md", " service-example", "  README.md", "  testing.md"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("walk = %q, want %q", visited, want)
	}

	if got := len(tree.Files()); got != 3 {
		t.Errorf("Files() = %d, want 3", got)
	}
	if got := tree.Collect("service"); len(got) != 1 || tree.Node(got[0]).Name != "service-example" {
		t.Errorf("Collect(service) = %v", got)
	}
	if id, ok := tree.Find("service-example/docs/testing.md"); !ok || tree.Node(id).Name != "testing.md" {
		t.Errorf("Find = %v, %v", id, ok)
	}
}

func TestTree_JSON(t *testing.T) {
	tree, _ := mustBuild(t, simpleFilesystem())

	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded View
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != TypeRepo || len(decoded.Children) != 2 {
		t.Fatalf("decoded root = %+v", decoded)
	}
	svc := decoded.Children[1]
	if svc.Path != "service-example" || svc.Children[1].DocPath != "docs/testing.md" {
		t.Errorf("service view = %+v", svc)
	}
	if strings.Contains(string(data), "Something about testing") {
		t.Error("tree JSON should not include file content")
	}
	if !strings.Contains(string(data), `"kind":"directory"`) {
		t.Errorf("kind should encode as text: %s", data)
	}

	if v := tree.View(tree.Root(), true); v.Children[0].Content != "This is a test" {
		t.Errorf("View with content = %q", v.Children[0].Content)
	}
}

func TestGetResources(t *testing.T) {
	g := testutil.NewGitRepo(t)
	g.WriteFile("README.md", "root")
	g.WriteFile("services/api/README.md", "---\ntype: service\n---\napi")
	g.WriteFile("services/api/docs/setup.md", "setup")
	g.CommitAt(1000, "initial", "README.md", "services/api/README.md", "services/api/docs/setup.md")
	g.WriteFile("services/api/docs/setup.md", "setup v2")
	g.CommitAt(2000, "update setup", "services/api/docs/setup.md")
	g.WriteFile("services/api/CHANGELOG.md", "uncommitted")

	gitRepo, err := gitbackend.Open(context.Background(), g.Root, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	scanRoot := g.Path("services")
	dir, err := scanner.Scan(context.Background(), scanRoot, processor.Defaults(), scanner.Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	now := time.Unix(9000, 0).UTC()
	tree, err := GetResources(context.Background(), gitRepo, dir, Options{
		ScanRoot: scanRoot,
		Resolver: history.NewResolver(history.Options{ChunkSize: 1, StrictOrder: true, Now: func() time.Time { return now }}),
		Now:      func() time.Time { return walkTime },
	})
	if err != nil {
		t.Fatalf("GetResources: %v", err)
	}

	want := map[string]time.Time{
		"api/README.md":     time.Unix(1000, 0),
		"api/docs/setup.md": time.Unix(2000, 0),
		"api/CHANGELOG.md":  now,
	}
	for src, ts := range want {
		id, ok := tree.Find(src)
		if !ok {
			t.Fatalf("missing resource %s", src)
		}
		if got := tree.Node(id).LastModified; !got.Equal(ts) {
			t.Errorf("%s = %v, want %v", src, got, ts)
		}
	}

	api := tree.Collect("service")
	if len(api) != 1 || !tree.Node(api[0]).LastModified.Equal(now) {
		t.Errorf("service resource should carry its newest child's time")
	}
	assertDirectoryInvariant(t, tree)
}

func TestGetResources_ResolveFailure(t *testing.T) {
	repo := &testutil.FakeHistory{RootDir: t.TempDir(), Raw: "not a timestamp\n"}

	_, err := GetResources(context.Background(), repo, simpleFilesystem(), Options{})
	if !errors.IsCode(err, errors.MalformedHistoryOutput) {
		t.Errorf("error = %v, want MALFORMED_HISTORY_OUTPUT", err)
	}
}
