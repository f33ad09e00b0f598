// Package store defines the relational storage interfaces used by the
// membership gateway, decoupling the RBAC evaluator and the credential broker
// from GORM so they can be tested with mocks.
//
// # Available Stores
//
//   - RolesStore: role permission rows visible on a resource
//   - CatalogStore: permission name resolution
//   - SeedStore: sealed per-resource signing seeds (the secret store)
//   - HealthStore: connectivity checks
//
// Implementations live in pkg/server/store/gorm.
package store
