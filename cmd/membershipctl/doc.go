// Command membershipctl runs the membership gateway server and its
// administrative tasks.
//
// # Quick Start
//
//	# Generate a data key used to seal signing seeds at rest
//	export MEMBERSHIP_DATA_KEY="$(membershipctl data-key generate)"
//
//	# Create the relational schema
//	membershipctl db migrate
//
//	# Load roles and their permission grants
//	membershipctl policy load roles.yml
//
//	# Provision the signing identity of a space
//	membershipctl seed generate space-1
//
//	# Start the server
//	membershipctl server
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - MEMBERSHIP_DATA_KEY: Base64-encoded 256-bit key for seed encryption
//   - MEMBERSHIP_SESSION_SECRET: HMAC secret used to validate session tokens
//   - MEMBERSHIP_CONFIG_PATH: directory holding membership.yml
//   - MEMBERSHIP_*: overrides for any configuration attribute
//   - AUDIT_DATABASE_URL: optional audit message database
package main
