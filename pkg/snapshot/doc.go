/*
Package snapshot copies the live sample database out of the bridge's container.

# Export

An export has three steps:

 1. Locate the single running container (docker ps -q). Zero or several
    matches is a LocatorError; the exporter never guesses.
 2. Locate the database inside it with a fixed find (default:
    find /home -name database.db). Zero or several matches is a LocatorError.
 3. Stream docker exec <id> cat <path> into a temp file next to the
    destination and rename it over the destination.

Nothing at the destination is touched until step 3 succeeds, so after a
LocatorError or CopyError the previous snapshot is still in place.

When the bridge runs directly on the host, FileLocator replaces the Docker
steps with a plain file copy.

# Ledger

Every attempt, successful or not, can be recorded in a Ledger: a small
BadgerDB keyed by start time. Each record carries the byte count and the
xxhash64 checksum of what was copied.

	ledger, err := snapshot.OpenLedger(snapshot.LedgerConfig{Path: dir})
	exporter := snapshot.New(locator, snapshot.WithLedger(ledger))
	result, err := exporter.Export(ctx, "/home/pi/Desktop/gpio_data.db")
*/
package snapshot
