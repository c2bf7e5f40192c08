package handler

import (
	"net/http"

	"github.com/medledger/medledger-backend/pkg/errors"
	"github.com/medledger/medledger-backend/pkg/httputil"
)

// branchFrom resolves the branch a request operates on: the branch_id query
// parameter when present, otherwise the authenticated branch header.
func branchFrom(r *http.Request) (string, error) {
	if branchID := r.URL.Query().Get("branch_id"); branchID != "" {
		return branchID, nil
	}
	if branchID := httputil.GetBranchID(r.Context()); branchID != "" {
		return branchID, nil
	}
	return "", errors.BadRequest("branch_id is required")
}
