package main

import (
	"fmt"

	"github.com/repolex/repolex/internal/apperrors"
	"github.com/repolex/repolex/internal/coordinator"
	"github.com/repolex/repolex/internal/model"
)

// parseRepo splits an "org/repo" slug into a model.Repository, the shape
// every ingestion and query verb takes as its first positional argument.
func parseRepo(slug string) (model.Repository, error) {
	org, repo, ok := splitSlug(slug)
	if !ok {
		return model.Repository{}, apperrors.New(apperrors.KindValidation, fmt.Sprintf("%q is not a valid org/repo slug", slug))
	}
	return model.Repository{Org: org, Repo: repo}, nil
}

func splitSlug(slug string) (org, repo string, ok bool) {
	for i := 0; i < len(slug); i++ {
		if slug[i] == '/' {
			org, repo = slug[:i], slug[i+1:]
			return org, repo, org != "" && repo != "" && !containsSlash(repo)
		}
	}
	return "", "", false
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}

// logProgress adapts the coordinator's ProgressFunc to appCtx.logger, so
// mutating verbs surface step-by-step progress the way the source's
// ProgressCallback drove a progress bar — here just one slog line per
// step rather than a redrawn bar.
func logProgress(repo model.Repository) coordinator.ProgressFunc {
	return func(step, total int, message string) {
		appCtx.logger.Debug("progress", "repo", repo.Slug(), "step", step, "total", total, "message", message)
	}
}

// logProgressGlobal is logProgress for operations with no single repo in
// scope, i.e. Nuke.
func logProgressGlobal() coordinator.ProgressFunc {
	return func(step, total int, message string) {
		appCtx.logger.Debug("progress", "step", step, "total", total, "message", message)
	}
}
