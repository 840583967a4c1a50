package main

import (
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/domain/catalogs/category"
	"setflow/internal/domain/catalogs/department"
	"setflow/internal/domain/records/assignment"
	"setflow/internal/domain/records/maintenance"
	"setflow/internal/metadata"
)

// setupMetadataRegistry describes every entity served under /api/v1.
func setupMetadataRegistry() *metadata.Registry {
	reg := metadata.NewRegistry()

	register := func(def metadata.EntityDef, label, path string) {
		def.Label = label
		def.Path = path
		reg.Register(def)
	}

	// Catalogs
	register(metadata.Inspect(asset.Asset{}, "Asset", metadata.TypeCatalog).
		WithOptions("status",
			string(asset.StatusAvailable),
			string(asset.StatusAssigned),
			string(asset.StatusMaintenance),
			string(asset.StatusRetired),
			string(asset.StatusDisposed),
		), "Assets", "/catalog/assets")
	register(metadata.Inspect(category.Category{}, "Category", metadata.TypeCatalog), "Categories", "/catalog/categories")
	register(metadata.Inspect(department.Department{}, "Department", metadata.TypeCatalog), "Departments", "/catalog/departments")

	// Records
	register(metadata.Inspect(maintenance.Maintenance{}, "Maintenance", metadata.TypeRecord).
		WithOptions("type",
			string(maintenance.TypeRepair),
			string(maintenance.TypeInspection),
			string(maintenance.TypeUpgrade),
			string(maintenance.TypeCleaning),
			string(maintenance.TypeOther),
		).
		WithOptions("status",
			string(maintenance.StatusScheduled),
			string(maintenance.StatusInProgress),
			string(maintenance.StatusCompleted),
			string(maintenance.StatusCancelled),
		), "Maintenance", "/records/maintenance")
	register(metadata.Inspect(assignment.Assignment{}, "Assignment", metadata.TypeRecord).
		WithOptions("status", string(assignment.StatusActive), string(assignment.StatusReturned)),
		"Assignments", "/records/assignments")

	return reg
}
