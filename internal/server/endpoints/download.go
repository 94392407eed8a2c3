package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/popsci/internal/api"
	"github.com/jackzampolin/popsci/internal/svcctx"
)

// DownloadEndpoint handles GET /api/paper/download/{task_id}/{filename...}.
type DownloadEndpoint struct{}

func (e *DownloadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/paper/download/{task_id}/{filename...}", e.handler
}

func (e *DownloadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download an artifact
//	@Description	Stream a file produced by a task: article.html, article.pdf, article.epub, article.md, metadata.json or images/<name>
//	@Tags			paper
//	@Produce		octet-stream
//	@Param			task_id		path	string	true	"Task ID"
//	@Param			filename	path	string	true	"Artifact name"
//	@Success		200
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/paper/download/{task_id}/{filename} [get]
func (e *DownloadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name, ok := artifactName(r.PathValue("filename"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	t, ok := lookupTask(w, r)
	if !ok {
		return
	}

	dir := svcctx.TaskDirFrom(r.Context(), t.ID)
	if dir == "" {
		writeError(w, http.StatusServiceUnavailable, "task storage not initialized")
		return
	}

	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "artifact not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "artifact not found: "+name)
		return
	}

	if path.Ext(name) != ".html" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(name)))
	}
	http.ServeContent(w, r, path.Base(name), info.ModTime(), f)
}

// artifactName accepts a top-level file or images/<file> and rejects
// anything that could leave the task directory.
func artifactName(raw string) (string, bool) {
	if raw == "" || strings.Contains(raw, `\`) || strings.ContainsRune(raw, 0) {
		return "", false
	}
	if path.IsAbs(raw) || path.Clean(raw) != raw {
		return "", false
	}
	parts := strings.Split(raw, "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.HasPrefix(p, ".") {
			return "", false
		}
	}
	switch {
	case len(parts) == 1:
		return raw, true
	case len(parts) == 2 && parts[0] == "images":
		return raw, true
	default:
		return "", false
	}
}

func (e *DownloadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <task_id> <filename>",
		Short: "Download a task artifact",
		Long: `Download one artifact of a finished task.

Examples:
  popsci api paper download <task_id> article.pdf
  popsci api paper download <task_id> images/figure_01.png -O fig.png
  popsci api paper download <task_id> article.md -O -        # write to stdout`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			dest := out
			if dest == "" {
				dest = path.Base(args[1])
			}

			var w io.Writer = cmd.OutOrStdout()
			if dest != "-" {
				f, err := os.Create(dest)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			p := "/api/paper/download/" + url.PathEscape(args[0]) + "/" + escapeArtifact(args[1])
			n, err := client.Download(cmd.Context(), p, w)
			if err != nil {
				if dest != "-" {
					os.Remove(dest)
				}
				return err
			}
			if dest != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", dest, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "O", "", "output file (default: artifact base name, - for stdout)")
	return cmd
}

func escapeArtifact(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
