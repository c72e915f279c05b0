package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// bookmarkNode is an entry of a Firefox bookmarks backup: a folder with
// children or a bookmark with a URI.
type bookmarkNode struct {
	Title    string          `json:"title"`
	URI      string          `json:"uri"`
	Children []*bookmarkNode `json:"children"`
}

// NewImportBookmarksCmd creates the import-bookmarks command.
func NewImportBookmarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-bookmarks <bookmarks.json> <out.yaml>",
		Short: "Convert a Firefox bookmarks backup into a site list",
		Long: `Import-bookmarks reads a Firefox bookmarks backup (Bookmarks > Manage
Bookmarks > Import and Backup > Backup...) and writes a configuration
file whose sites list holds every bookmarked website.

Each bookmark is reduced to its site root (scheme://host/). Non-web
bookmarks such as place: and javascript: URIs are skipped, and every site
is listed once, sorted.

Example:
  sitescan import-bookmarks bookmarks-2026-01-01.json sites.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: runImportBookmarksCmd,
	}
}

func runImportBookmarksCmd(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open bookmarks file: %w", err)
	}
	defer in.Close()

	sites, err := importBookmarks(in)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := writeSiteList(&buf, sites); err != nil {
		return err
	}

	dir := filepath.Dir(args[1])
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(args[1], buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write site list: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sites into %s\n", len(sites), args[1])
	return nil
}

// importBookmarks returns the sorted, distinct site roots of every http(s)
// bookmark in the backup read from r.
func importBookmarks(r io.Reader) ([]string, error) {
	var root bookmarkNode
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks file: %w", err)
	}

	seen := make(map[string]struct{})
	var walk func(n *bookmarkNode)
	walk = func(n *bookmarkNode) {
		if n == nil {
			return
		}
		if site, ok := siteRoot(n.URI); ok {
			seen[site] = struct{}{}
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(&root)

	sites := make([]string, 0, len(seen))
	for site := range seen {
		sites = append(sites, site)
	}
	slices.Sort(sites)
	return sites, nil
}

// siteRoot reduces an http(s) URI to scheme://host/.
func siteRoot(uri string) (string, bool) {
	if uri == "" {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host) + "/", true
}

// writeSiteList writes sites as a configuration document with a bare URL
// per site.
func writeSiteList(w io.Writer, sites []string) error {
	doc := struct {
		Sites []string `yaml:"sites"`
	}{Sites: sites}

	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode site list: %w", err)
	}
	return enc.Close()
}
