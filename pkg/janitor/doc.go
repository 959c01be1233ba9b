// Package janitor runs scheduled housekeeping: reaping staging directories
// parked past their TTL and trimming oversized project logs.
package janitor
