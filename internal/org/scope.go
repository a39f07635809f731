package org

import "gorm.io/gorm"

// ForOrg returns a GORM scope that filters by org_id.
func ForOrg(orgID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("org_id = ?", orgID)
	}
}
