package database

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/yeremiapane/billiard-pos/utils"
	"gorm.io/gorm"
)

//go:embed procedures/*.sql
var procedureFS embed.FS

// Procedures lists the stored procedures installed by InstallProcedures.
var Procedures = []string{"cancel_reservation_with_refund"}

// SplitStatements breaks a procedure script on the "//" delimiter and drops
// empty fragments and comment-only lines.
func SplitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, "//") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt = strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt == "" || stmt == ";" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

// InstallProcedures (re)creates the stored procedures on a MySQL store and
// verifies they exist afterwards.
func InstallProcedures(db *gorm.DB) error {
	files, err := fs.Glob(procedureFS, "procedures/*.sql")
	if err != nil {
		return err
	}
	for _, name := range files {
		script, err := procedureFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		for _, stmt := range SplitStatements(string(script)) {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to execute %s: %w", name, err)
			}
		}
		utils.InfoLogger.WithField("file", name).Info("Installed stored procedure script")
	}

	var installed []string
	if err := db.Raw(`
        SELECT ROUTINE_NAME
        FROM information_schema.routines
        WHERE ROUTINE_SCHEMA = DATABASE() AND ROUTINE_TYPE = 'PROCEDURE'
    `).Scan(&installed).Error; err != nil {
		return fmt.Errorf("failed to verify procedures: %w", err)
	}
	for _, want := range Procedures {
		found := false
		for _, name := range installed {
			if strings.EqualFold(name, want) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("stored procedure %s was not installed", want)
		}
		utils.InfoLogger.WithField("procedure", want).Info("Procedure verified")
	}
	return nil
}
