package mssql

import (
	"fmt"
	"strings"
)

// formatType renders a sys.columns type the way it would be declared, e.g.
// nvarchar(50), varchar(max), decimal(10,2).
func formatType(typeName string, maxLength, precision, scale int) string {
	name := strings.ToLower(typeName)
	switch name {
	case "char", "varchar", "binary", "varbinary":
		if maxLength == -1 {
			return name + "(max)"
		}
		return fmt.Sprintf("%s(%d)", name, maxLength)
	case "nchar", "nvarchar":
		// max_length is in bytes; n-types store two bytes per character.
		if maxLength == -1 {
			return name + "(max)"
		}
		return fmt.Sprintf("%s(%d)", name, maxLength/2)
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", name, precision, scale)
	case "datetime2", "datetimeoffset", "time":
		return fmt.Sprintf("%s(%d)", name, scale)
	default:
		return name
	}
}
