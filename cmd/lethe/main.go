// Lethe is a data-lifecycle retention engine. It deletes, soft-deletes or
// anonymizes personal data once the retention period of its category has
// elapsed and sends notices before deletion.
//
// Usage:
//
//	# Run the daily retention check
//	lethe daily_check --config lethe.yaml
//
//	# Preview what the weekly cleanup would do
//	lethe weekly_cleanup --dry-run
//
//	# Process a single category
//	lethe process_data_type cv_document
//
//	# Show policies, engine status and per-category stats
//	lethe list_policies
//	lethe status
//	lethe stats --format json
//
//	# Run the cron scheduler and HTTP API
//	lethe serve
package main

func main() {
	Execute()
}
