package memberships

type assignRequest struct {
	TenantID string `json:"tenantId"`
}

type membershipResponse struct {
	ActorID  string `json:"actorId"`
	TenantID string `json:"tenantId"`
}
