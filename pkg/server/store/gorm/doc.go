// Package gorm provides GORM-based implementations of the store interfaces
// defined in the parent store package.
//
// Role permission reads use a raw join so the role level travels with each
// row. Signing seeds are sealed and unsealed by the model hooks using the
// data-key cipher the SeedStore places on the statement context.
package gorm
