package main

import (
	"testing"

	"github.com/repolex/repolex/internal/apperrors"
)

func TestParseRepoAcceptsOrgSlashRepo(t *testing.T) {
	repo, err := parseRepo("acme/demo")
	if err != nil {
		t.Fatalf("parseRepo: %v", err)
	}
	if repo.Org != "acme" || repo.Repo != "demo" {
		t.Fatalf("expected acme/demo, got %+v", repo)
	}
}

func TestParseRepoRejectsMissingSlash(t *testing.T) {
	_, err := parseRepo("acme")
	if !apperrors.HasKind(err, apperrors.KindValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestParseRepoRejectsExtraSlash(t *testing.T) {
	_, err := parseRepo("acme/demo/extra")
	if !apperrors.HasKind(err, apperrors.KindValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestParseRepoRejectsEmptyOrgOrRepo(t *testing.T) {
	for _, slug := range []string{"/demo", "acme/", "/"} {
		if _, err := parseRepo(slug); !apperrors.HasKind(err, apperrors.KindValidation) {
			t.Errorf("parseRepo(%q): expected a validation error, got %v", slug, err)
		}
	}
}
