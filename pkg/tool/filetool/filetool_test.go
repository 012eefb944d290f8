// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filetool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/forge/pkg/tool"
)

func call(t *testing.T, newTool func(Config) (tool.Tool, error), dir string, input any) (string, error) {
	t.Helper()
	tl, err := newTool(Config{WorkingDirectory: dir})
	require.NoError(t, err)
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return tl.Call(context.Background(), raw)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFileT(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hello.txt"), "hello\nworld\n")
	writeFile(t, filepath.Join(dir, "bin.dat"), string([]byte{0xff, 0xfe, 0x00}))

	out, err := call(t, NewRead, dir, map[string]any{"file_path": "hello.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", out)

	abs := filepath.Join(dir, "hello.txt")
	out, err = call(t, NewRead, "/nonexistent", map[string]any{"file_path": abs})
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", out)

	_, err = call(t, NewRead, dir, map[string]any{"file_path": "missing.txt"})
	assert.ErrorIs(t, err, tool.ErrFileIO)

	_, err = call(t, NewRead, dir, map[string]any{"file_path": "."})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)

	_, err = call(t, NewRead, dir, map[string]any{"file_path": "bin.dat"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)

	_, err = call(t, NewRead, dir, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "invalid tool input: missing file_path", err.Error())
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	out, err := call(t, NewWrite, dir, map[string]any{"file_path": "a/b/c.txt", "content": "héllo"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully wrote 6 bytes to a/b/c.txt", out)
	assert.Equal(t, "héllo", readFileT(t, filepath.Join(dir, "a", "b", "c.txt")))

	_, err = call(t, NewWrite, dir, map[string]any{"file_path": "a/b/c.txt", "content": ""})
	require.NoError(t, err)
	assert.Equal(t, "", readFileT(t, filepath.Join(dir, "a", "b", "c.txt")))

	leftovers, err := filepath.Glob(filepath.Join(dir, "a", "b", ".c.txt.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	_, err = call(t, NewWrite, dir, map[string]any{"file_path": "x.txt"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestWrite_KeepsMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo hi"), 0o755))

	_, err := call(t, NewWrite, dir, map[string]any{"file_path": "run.sh", "content": "echo bye"})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	writeFile(t, path, "foo bar foo\n")

	out, err := call(t, NewEdit, dir, map[string]any{"file_path": "main.go", "old_string": "foo", "new_string": "baz"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully replaced string in main.go", out)
	assert.Equal(t, "baz bar baz\n", readFileT(t, path))

	_, err = call(t, NewEdit, dir, map[string]any{"file_path": "main.go", "old_string": "qux", "new_string": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
	assert.Contains(t, err.Error(), "String not found in file: main.go")
	assert.Equal(t, "baz bar baz\n", readFileT(t, path))

	_, err = call(t, NewEdit, dir, map[string]any{"file_path": "main.go", "old_string": "", "new_string": "x"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)

	_, err = call(t, NewEdit, dir, map[string]any{"file_path": "nope.go", "old_string": "a", "new_string": "b"})
	assert.ErrorIs(t, err, tool.ErrFileIO)

	_, err = call(t, NewEdit, dir, map[string]any{"file_path": "main.go", "old_string": "baz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing new_string")
}

func grepTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a\n// TODO: one\n")
	writeFile(t, filepath.Join(dir, "b.txt"), "todo lowercase\n")
	writeFile(t, filepath.Join(dir, "sub", "c.go"), "  // TODO: two  \r\nfunc c() {}\n")
	return dir
}

func TestGrep(t *testing.T) {
	dir := grepTree(t)

	out, err := call(t, NewGrep, dir, map[string]any{"pattern": "TODO"})
	require.NoError(t, err)
	assert.Equal(t, "Found 2 matches:\n\n"+
		filepath.Join(dir, "a.go")+":2: // TODO: one\n"+
		filepath.Join(dir, "sub", "c.go")+":1: // TODO: two", out)

	out, err = call(t, NewGrep, dir, map[string]any{"pattern": "todo", "case_insensitive": true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Found 3 matches:"), out)

	out, err = call(t, NewGrep, dir, map[string]any{"pattern": "todo", "case_insensitive": true, "file_pattern": "*.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Found 1 matches:\n\n"+filepath.Join(dir, "b.txt")+":1: todo lowercase", out)

	out, err = call(t, NewGrep, dir, map[string]any{"pattern": "TODO", "max_results": 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Found 1 matches:"), out)

	out, err = call(t, NewGrep, dir, map[string]any{"pattern": "TODO", "path": "sub/c.go"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Found 1 matches:"), out)

	out, err = call(t, NewGrep, dir, map[string]any{"pattern": "nothing-here"})
	require.NoError(t, err)
	assert.Equal(t, "No matches found for pattern: nothing-here", out)

	_, err = call(t, NewGrep, dir, map[string]any{"pattern": "x", "path": "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Path does not exist: "+filepath.Join(dir, "missing"))

	_, err = call(t, NewGrep, dir, map[string]any{"pattern": "("})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestGlob(t *testing.T) {
	dir := grepTree(t)

	out, err := call(t, NewGlob, dir, map[string]any{"pattern": "**/*.go"})
	require.NoError(t, err)
	assert.Equal(t, "Found 2 files:\n\n"+filepath.Join(dir, "a.go")+"\n"+filepath.Join(dir, "sub", "c.go"), out)

	out, err = call(t, NewGlob, dir, map[string]any{"pattern": "*.go", "path": "sub"})
	require.NoError(t, err)
	assert.Equal(t, "Found 1 files:\n\n"+filepath.Join(dir, "sub", "c.go"), out)

	out, err = call(t, NewGlob, dir, map[string]any{"pattern": "**/*", "max_results": 2})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Found 2 files:"), out)

	out, err = call(t, NewGlob, "/", map[string]any{"pattern": filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	assert.Equal(t, "Found 1 files:\n\n"+filepath.Join(dir, "b.txt"), out)

	out, err = call(t, NewGlob, dir, map[string]any{"pattern": "*.rs"})
	require.NoError(t, err)
	assert.Equal(t, "No files found matching pattern: *.rs", out)

	_, err = call(t, NewGlob, dir, map[string]any{"pattern": "[a-"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestListDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "z.txt"), "zz")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, ".hidden"), "h")
	writeFile(t, filepath.Join(dir, "m", "inner.txt"), "i")

	out, err := call(t, NewListDirectory, dir, map[string]any{})
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Directory: "+dir, lines[0])
	assert.Equal(t, "3 items:", lines[1])
	assert.Equal(t, "m/", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "a.txt  1 B  "), lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "z.txt  2 B  "), lines[5])

	out, err = call(t, NewListDirectory, dir, map[string]any{"show_hidden": true, "recursive": true})
	require.NoError(t, err)
	lines = strings.Split(out, "\n")
	assert.Equal(t, "5 items:", lines[1])
	assert.Equal(t, "m/", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "  inner.txt"), lines[4])
	assert.True(t, strings.HasPrefix(lines[5], ".hidden"), lines[5])

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	out, err = call(t, NewListDirectory, dir, map[string]any{"path": "empty"})
	require.NoError(t, err)
	assert.Equal(t, "Directory is empty: "+empty, out)

	_, err = call(t, NewListDirectory, dir, map[string]any{"path": "a.txt"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
	_, err = call(t, NewListDirectory, dir, map[string]any{"path": "nope"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestCopy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src.txt"), "data")
	writeFile(t, filepath.Join(dir, "tree", "one.txt"), "1")
	writeFile(t, filepath.Join(dir, "tree", "nested", "two.txt"), "2")

	out, err := call(t, NewCopy, dir, map[string]any{"source": "src.txt", "destination": "out/dst.txt"})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully copied file")
	assert.Equal(t, "data", readFileT(t, filepath.Join(dir, "out", "dst.txt")))

	_, err = call(t, NewCopy, dir, map[string]any{"source": "src.txt", "destination": "out/dst.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Set overwrite=true")

	_, err = call(t, NewCopy, dir, map[string]any{"source": "src.txt", "destination": "out/dst.txt", "overwrite": true})
	require.NoError(t, err)

	out, err = call(t, NewCopy, dir, map[string]any{"source": "tree", "destination": "tree2"})
	require.NoError(t, err)
	assert.Contains(t, out, "2 files copied, 2 directories created")
	assert.Equal(t, "2", readFileT(t, filepath.Join(dir, "tree2", "nested", "two.txt")))

	_, err = call(t, NewCopy, dir, map[string]any{"source": "tree", "destination": "tree3", "recursive": false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Source is a directory")

	_, err = call(t, NewCopy, dir, map[string]any{"source": "ghost", "destination": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Source does not exist")
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")

	_, err := call(t, NewMove, dir, map[string]any{"source": "a.txt", "destination": "b.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Destination already exists")

	out, err := call(t, NewMove, dir, map[string]any{"source": "a.txt", "destination": "b.txt", "overwrite": true})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully moved file")
	assert.Equal(t, "a", readFileT(t, filepath.Join(dir, "b.txt")))
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "f.txt"), "f")
	writeFile(t, filepath.Join(dir, "d", "x.txt"), "x")

	out, err := call(t, NewDelete, dir, map[string]any{"path": "f.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully deleted file: "+filepath.Join(dir, "f.txt"), out)
	assert.NoFileExists(t, filepath.Join(dir, "f.txt"))

	_, err = call(t, NewDelete, dir, map[string]any{"path": "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Set recursive=true")
	assert.DirExists(t, filepath.Join(dir, "d"))

	out, err = call(t, NewDelete, dir, map[string]any{"path": "d", "recursive": true})
	require.NoError(t, err)
	assert.Contains(t, out, "1 files and 1 directories removed")
	assert.NoDirExists(t, filepath.Join(dir, "d"))

	_, err = call(t, NewDelete, dir, map[string]any{"path": "d"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func replaceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "oldName := 1\nuse(oldName)\n")
	writeFile(t, filepath.Join(dir, "b.txt"), "OLDNAME in text\n")
	writeFile(t, filepath.Join(dir, "sub", "c.go"), "func oldName() {}\n")
	return dir
}

func TestMultiReplace(t *testing.T) {
	a := "a.go"
	c := filepath.Join("sub", "c.go")

	tests := []struct {
		name  string
		input map[string]any
		want  string
		files map[string]string
	}{
		{
			name:  "dry run by default",
			input: map[string]any{"pattern": "oldName", "replacement": "newName"},
			want:  "Dry run: 2 files would change with 3 replacements:\n\n{a.go}: 2 replacements\n{sub/c.go}: 1 replacements",
			files: map[string]string{a: "oldName := 1\nuse(oldName)\n", c: "func oldName() {}\n"},
		},
		{
			name:  "applies when dry_run is false",
			input: map[string]any{"pattern": "oldName", "replacement": "newName", "dry_run": false},
			want:  "Applied 3 replacements in 2 files:\n\n{a.go}: 2 replacements\n{sub/c.go}: 1 replacements",
			files: map[string]string{a: "newName := 1\nuse(newName)\n", c: "func newName() {}\n"},
		},
		{
			name:  "file pattern and case insensitive",
			input: map[string]any{"pattern": "oldname", "replacement": "x", "case_insensitive": true, "file_pattern": "*.txt", "dry_run": false},
			want:  "Applied 1 replacements in 1 files:\n\n{b.txt}: 1 replacements",
			files: map[string]string{"b.txt": "x in text\n", a: "oldName := 1\nuse(oldName)\n"},
		},
		{
			name:  "capture groups",
			input: map[string]any{"pattern": `func (\w+)\(\)`, "replacement": "func ${1}V2()", "dry_run": false},
			want:  "Applied 1 replacements in 1 files:\n\n{sub/c.go}: 1 replacements",
			files: map[string]string{c: "func oldNameV2() {}\n"},
		},
		{
			name:  "max files limits the walk",
			input: map[string]any{"pattern": "oldName", "replacement": "n", "max_files": 1, "dry_run": false},
			want:  "Applied 2 replacements in 1 files:\n\n{a.go}: 2 replacements",
			files: map[string]string{a: "n := 1\nuse(n)\n", c: "func oldName() {}\n"},
		},
		{
			name:  "no matches",
			input: map[string]any{"pattern": "absent", "replacement": "x"},
			want:  "Searched 3 files, no matches found for pattern: absent",
		},
		{
			name:  "no files",
			input: map[string]any{"pattern": "x", "replacement": "y", "file_pattern": "*.rs"},
			want:  "No files found matching the criteria",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := replaceTree(t)
			want := strings.NewReplacer(
				"{a.go}", filepath.Join(dir, "a.go"),
				"{b.txt}", filepath.Join(dir, "b.txt"),
				"{sub/c.go}", filepath.Join(dir, "sub", "c.go"),
			).Replace(tt.want)

			out, err := call(t, NewMultiReplace, dir, tt.input)
			require.NoError(t, err)
			assert.Equal(t, want, out)
			for rel, content := range tt.files {
				assert.Equal(t, content, readFileT(t, filepath.Join(dir, rel)), rel)
			}
		})
	}
}

func TestMultiReplace_Errors(t *testing.T) {
	dir := replaceTree(t)

	_, err := call(t, NewMultiReplace, dir, map[string]any{"pattern": "(", "replacement": "x"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)

	_, err = call(t, NewMultiReplace, dir, map[string]any{"pattern": "x", "replacement": "y", "path": "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Path does not exist")

	_, err = call(t, NewMultiReplace, dir, map[string]any{"pattern": "x"})
	assert.ErrorIs(t, err, tool.ErrInvalidInput)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", formatSize(0))
	assert.Equal(t, "1023 B", formatSize(1023))
	assert.Equal(t, "1.00 KB", formatSize(1024))
	assert.Equal(t, "1.50 MB", formatSize(3<<19))
}
