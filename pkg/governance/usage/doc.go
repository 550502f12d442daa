// Package usage tracks per-service request counts by calendar month and
// enforces monthly call budgets.
package usage
