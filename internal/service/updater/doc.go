// Package updater implements the update batch: discovering compose services,
// refreshing their images, restarting the ones whose images changed and
// cleaning up afterwards. Run is the entry point used by the CLI.
package updater
