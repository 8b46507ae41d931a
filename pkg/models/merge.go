package models

// Merge applies other on top of c: new non-empty values win, known values are
// kept otherwise. Guards against overwrite-with-blank from partial extraction.
func (c *CustomerInfo) Merge(other CustomerInfo) {
	if other.Name != "" {
		c.Name = other.Name
	}
	if other.Email != "" {
		c.Email = other.Email
	}
	if other.Phone != "" {
		c.Phone = other.Phone
	}
	if other.Company != "" {
		c.Company = other.Company
	}
	if other.Title != "" {
		c.Title = other.Title
	}
	if other.Industry != "" {
		c.Industry = other.Industry
	}
	if other.CompanySize != "" {
		c.CompanySize = other.CompanySize
	}
	if other.Role != "" {
		c.Role = other.Role
	}
	if len(other.CurrentChallenges) > 0 {
		c.CurrentChallenges = append([]string(nil), other.CurrentChallenges...)
	}
	if len(other.PainPoints) > 0 {
		c.PainPoints = append([]string(nil), other.PainPoints...)
	}
	if other.Budget != "" {
		c.Budget = other.Budget
	}
	if other.Timeline != "" {
		c.Timeline = other.Timeline
	}
	if len(other.Stakeholders) > 0 {
		c.Stakeholders = append([]string(nil), other.Stakeholders...)
	}
}

// Clone returns a copy with no shared slice backing.
func (c CustomerInfo) Clone() CustomerInfo {
	out := c
	out.CurrentChallenges = append([]string(nil), c.CurrentChallenges...)
	out.PainPoints = append([]string(nil), c.PainPoints...)
	out.Stakeholders = append([]string(nil), c.Stakeholders...)
	return out
}
