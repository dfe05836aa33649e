package sync

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/openmined/fabsync/internal/fabricsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func folder(id, name, parent string) fabricsdk.Folder {
	return fabricsdk.Folder{ID: id, DisplayName: name, ParentFolderID: parent}
}

func TestFolderTree_FullPath(t *testing.T) {
	tests := []struct {
		name    string
		folders []fabricsdk.Folder
		id      string
		want    []string
	}{
		{
			name:    "root folder",
			folders: []fabricsdk.Folder{folder("r", "Reports", "")},
			id:      "r",
			want:    []string{"Reports"},
		},
		{
			name: "nested chain",
			folders: []fabricsdk.Folder{
				folder("a", "A", ""),
				folder("b", "B", "a"),
				folder("c", "C", "b"),
			},
			id:   "c",
			want: []string{"A", "B", "C"},
		},
		{
			name:    "two folder cycle",
			folders: []fabricsdk.Folder{folder("a", "A", "b"), folder("b", "B", "a")},
			id:      "a",
			want:    []string{"B", "A"},
		},
		{
			name:    "self loop",
			folders: []fabricsdk.Folder{folder("a", "A", "a")},
			id:      "a",
			want:    []string{"A"},
		},
		{
			name:    "dangling parent becomes root",
			folders: []fabricsdk.Folder{folder("b", "B", "missing"), folder("c", "C", "b")},
			id:      "c",
			want:    []string{"B", "C"},
		},
		{
			name:    "names are sanitized",
			folders: []fabricsdk.Folder{folder("a", "../x", ""), folder("b", "a/b", "a")},
			id:      "b",
			want:    []string{".._x", "a_b"},
		},
		{
			name:    "unknown folder",
			folders: []fabricsdk.Folder{folder("a", "A", "")},
			id:      "zzz",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewFolderTree(tt.folders, nil)
			assert.Equal(t, tt.want, tree.FullPath(tt.id))
			// memoised results are identical
			assert.Equal(t, tt.want, tree.FullPath(tt.id))
		})
	}
}

func TestFolderTree_CachedPathIsNotShared(t *testing.T) {
	tree := NewFolderTree([]fabricsdk.Folder{folder("a", "A", ""), folder("b", "B", "a")}, nil)

	first := tree.FullPath("b")
	first[0] = "mutated"

	assert.Equal(t, []string{"A", "B"}, tree.FullPath("b"))
}

func TestFolderTree_Dir(t *testing.T) {
	tree := NewFolderTree([]fabricsdk.Folder{folder("a", "Sales", ""), folder("b", "Q1", "a")}, nil)

	assert.Empty(t, tree.Dir(&fabricsdk.Item{ID: "1"}), "no folder means root")
	assert.Empty(t, tree.Dir(&fabricsdk.Item{ID: "2", FolderID: "nope"}), "unknown folder means root")
	assert.Equal(t, []string{"Sales", "Q1"}, tree.Dir(&fabricsdk.Item{ID: "3", FolderID: "b"}))
}

func TestFolderTree_ItemPath(t *testing.T) {
	tree := NewFolderTree([]fabricsdk.Folder{folder("a", "Sales", "")}, nil)

	assert.Equal(t, "NB1.Notebook", tree.ItemPath(&fabricsdk.Item{DisplayName: "NB1", Type: "Notebook"}))
	assert.Equal(t, "Sales/Daily.Report", tree.ItemPath(&fabricsdk.Item{DisplayName: "Daily", Type: "Report", FolderID: "a"}))
	assert.Equal(t, "Sales/a_b.Report", tree.ItemPath(&fabricsdk.Item{DisplayName: "a/b", Type: "Report", FolderID: "a"}))
}

// random parent graphs, cycles included, always resolve to a finite path without repeats
func TestFolderTree_RandomGraphsTerminate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(12)
		folders := make([]fabricsdk.Folder, n)
		for i := range folders {
			parent := ""
			switch rng.Intn(4) {
			case 0:
				// root
			case 1:
				parent = "dangling"
			default:
				parent = fmt.Sprintf("f%d", rng.Intn(n))
			}
			folders[i] = folder(fmt.Sprintf("f%d", i), fmt.Sprintf("f%d", i), parent)
		}

		tree := NewFolderTree(folders, nil)
		for i := range folders {
			path := tree.FullPath(folders[i].ID)
			require.NotEmpty(t, path)
			require.LessOrEqual(t, len(path), n)
			assert.Equal(t, folders[i].ID, path[len(path)-1], "leaf is the folder itself")

			seen := map[string]bool{}
			for _, seg := range path {
				require.False(t, seen[seg], "segment %s repeated in %v", seg, path)
				seen[seg] = true
			}
		}
	}
}
