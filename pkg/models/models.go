package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Namespace{},
		&User{},
		&OrgMembership{},
		&Token{},
		&Repository{},
		&File{},
		&Revision{},
		&QuotaPolicy{},
		&LFSConfig{},
		&StagingUpload{},
	}
}
