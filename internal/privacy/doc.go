// Package privacy implements the Laplace release mechanism and the
// per-(tenant, category) privacy budget ledger.
//
// Every noised release consumes epsilon from the ledger under serial
// composition. Consumption is atomic with the release: two concurrent
// requests for the same tenant and category can never both slip past the
// cap, and a rejected request draws no noise and charges nothing. The budget
// never refreshes on its own; only an audited administrative reset returns
// it to zero.
package privacy
