package partitions

import "github.com/hilthontt/tenantwire/internal/domain"

type auditListResponse struct {
	Partition string               `json:"partition"`
	Records   []domain.AuditRecord `json:"records"`
	// NextCursor resumes the listing, empty on the last page.
	NextCursor string `json:"nextCursor,omitempty"`
}

type membersResponse struct {
	Partition string          `json:"partition"`
	Members   []domain.Member `json:"members"`
}
