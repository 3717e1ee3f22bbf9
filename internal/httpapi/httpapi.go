// Package httpapi is the HTTP surface built on gin, dispatching every
// request into internal/cratesvc and internal/githubclient.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/standardbeagle/cratedocs/internal/cerrors"
	"github.com/standardbeagle/cratedocs/internal/config"
	"github.com/standardbeagle/cratedocs/internal/cratesvc"
	"github.com/standardbeagle/cratedocs/internal/cratetypes"
	"github.com/standardbeagle/cratedocs/internal/githubclient"
)

// landingRedirectURL is the fixed external destination of the "/" redirect route.
const landingRedirectURL = "https://crates.io"

// Server wires cratesvc and an optional githubclient behind gin routes.
type Server struct {
	engine *gin.Engine
	svc    *cratesvc.Service
	gh     *githubclient.Client
}

// New builds the gin engine and registers every route the service exposes.
// Basic Auth middleware is installed only when cfg.AuthEnabled(); the
// external-service routes are mounted only when gh is non-nil.
func New(cfg *config.Config, svc *cratesvc.Service, gh *githubclient.Client) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, svc: svc, gh: gh}

	engine.GET("/health", s.handleHealth)
	engine.GET("/", s.handleLandingRedirect)
	engine.GET("/privacy-policy", s.handlePrivacyPolicy)

	api := engine.Group("/api")
	if cfg.AuthEnabled() {
		api.Use(basicAuth(cfg.Username, cfg.Password))
	}

	api.GET("/lines/:name/:version", s.handleSearchLines)
	api.GET("/items/:name/:version", s.handleSearchDeclarations)
	api.GET("/file/:name/:version/*path", s.handleGetFile)
	api.GET("/directory/:name/:version", s.handleListDirectory)
	api.GET("/directory/:name/:version/*path", s.handleListDirectory)

	if gh != nil {
		api.GET("/github/directory/:owner/:repo", s.handleGitHubDirectory)
		api.GET("/github/directory/:owner/:repo/*path", s.handleGitHubDirectory)
		api.GET("/github/file/:owner/:repo/*path", s.handleGitHubFile)
		api.GET("/github/issues/:owner/:repo", s.handleGitHubIssues)
		api.GET("/github/issues/:owner/:repo/:number/timeline", s.handleGitHubIssueTimeline)
	}

	return s
}

// Handler returns the http.Handler to pass to http.Server or httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (s *Server) handleLandingRedirect(c *gin.Context) {
	c.Redirect(http.StatusFound, landingRedirectURL)
}

func (s *Server) handlePrivacyPolicy(c *gin.Context) {
	c.String(http.StatusOK, privacyPolicyText)
}

// basicAuth compares credentials by exact string equality against a single
// configured pair, by exact string equality.
func basicAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || user != username || pass != password {
			c.Header("WWW-Authenticate", `Basic realm="cratedocs"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) handleSearchLines(c *gin.Context) {
	cv, ok := crateVersionParam(c)
	if !ok {
		return
	}

	maxResults, err := optionalPositiveInt(c.Query("max_results"))
	if err != nil {
		writeError(c, cerrors.BadRequest("httpapi.handleSearchLines", err))
		return
	}

	mode := cratetypes.PlainText
	if c.Query("mode") == "regex" {
		mode = cratetypes.Regex
	}

	q := cratetypes.LineQuery{
		Query:         c.Query("query"),
		Mode:          mode,
		CaseSensitive: c.Query("case_sensitive") == "true",
		WholeWord:     c.Query("whole_word") == "true",
		MaxResults:    maxResults,
		FileExt:       splitCommaList(c.Query("file_ext")),
		Path:          c.Query("path"),
	}

	lines, err := s.svc.SearchLines(c.Request.Context(), cv, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (s *Server) handleSearchDeclarations(c *gin.Context) {
	cv, ok := crateVersionParam(c)
	if !ok {
		return
	}

	q := cratetypes.ItemQuery{Query: c.Query("query"), Path: c.Query("path")}
	typeParam := c.DefaultQuery("type", "all")
	if typeParam == "all" || typeParam == "" {
		q.IsAll = true
	} else {
		kind, ok := cratetypes.ParseItemKind(typeParam)
		if !ok {
			writeError(c, cerrors.BadRequest("httpapi.handleSearchDeclarations", fmt.Errorf("unknown type %q", typeParam)))
			return
		}
		q.Kind = kind
	}

	items, err := s.svc.SearchDeclarations(c.Request.Context(), cv, q)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]cratetypes.Item, len(items))
	for i, it := range items {
		out[i] = it.WithKindName()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetFile(c *gin.Context) {
	cv, ok := crateVersionParam(c)
	if !ok {
		return
	}
	relPath := strings.TrimPrefix(c.Param("path"), "/")

	start, err := optionalPositiveInt(c.Query("start"))
	if err != nil {
		writeError(c, cerrors.BadRequest("httpapi.handleGetFile", err))
		return
	}
	end, err := optionalPositiveInt(c.Query("end"))
	if err != nil {
		writeError(c, cerrors.BadRequest("httpapi.handleGetFile", err))
		return
	}

	fb, err := s.svc.GetFile(c.Request.Context(), cv, relPath, cratetypes.FileLineRange{Start: start, End: end})
	if err != nil {
		writeError(c, err)
		return
	}

	contentType := "application/octet-stream"
	if fb.Encoding == cratetypes.Utf8 {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, fb.Data)
}

func (s *Server) handleListDirectory(c *gin.Context) {
	cv, ok := crateVersionParam(c)
	if !ok {
		return
	}
	relPath := strings.TrimPrefix(c.Param("path"), "/")

	listing, err := s.svc.ListDirectory(c.Request.Context(), cv, relPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) handleGitHubDirectory(c *gin.Context) {
	repo := githubclient.Repository{Owner: c.Param("owner"), Repo: c.Param("repo")}
	relPath := strings.TrimPrefix(c.Param("path"), "/")

	listing, err := s.gh.ReadDirectory(c.Request.Context(), repo, relPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) handleGitHubFile(c *gin.Context) {
	repo := githubclient.Repository{Owner: c.Param("owner"), Repo: c.Param("repo")}
	relPath := strings.TrimPrefix(c.Param("path"), "/")

	data, err := s.gh.GetFile(c.Request.Context(), repo, relPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (s *Server) handleGitHubIssues(c *gin.Context) {
	repo := githubclient.Repository{Owner: c.Param("owner"), Repo: c.Param("repo")}

	issues, err := s.gh.SearchIssues(c.Request.Context(), repo, c.Query("state"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (s *Server) handleGitHubIssueTimeline(c *gin.Context) {
	repo := githubclient.Repository{Owner: c.Param("owner"), Repo: c.Param("repo")}

	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		writeError(c, cerrors.BadRequest("httpapi.handleGitHubIssueTimeline", err))
		return
	}
	events, err := s.gh.IssueTimeline(c.Request.Context(), repo, number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func crateVersionParam(c *gin.Context) (cratetypes.CrateVersion, bool) {
	cv := cratetypes.CrateVersion{Name: c.Param("name"), Version: c.Param("version")}
	if err := cv.Validate(); err != nil {
		writeError(c, cerrors.BadRequest("httpapi.crateVersionParam", err))
		return cratetypes.CrateVersion{}, false
	}
	return cv, true
}

func optionalPositiveInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("expected a positive integer, got %q", raw)
	}
	return &n, nil
}

func splitCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// statusForKind maps the error taxonomy onto HTTP statuses.
func statusForKind(kind cerrors.Kind) int {
	switch kind {
	case cerrors.KindNotFound:
		return http.StatusNotFound
	case cerrors.KindBadRequest:
		return http.StatusBadRequest
	case cerrors.KindUnauthorized:
		return http.StatusUnauthorized
	case cerrors.KindUpstream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := cerrors.As(err)
	c.JSON(statusForKind(kind), gin.H{"error": err.Error()})
}

const privacyPolicyText = "This service reads and indexes publicly published package source code. " +
	"No personal data is collected beyond what the upstream package registry already makes public.\n"
