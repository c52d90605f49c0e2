// Package main is the entry point for the predefine server.
//
//	@title			Predefine API
//	@version		1.0
//	@description	Generic reference data (lookup values) grouped by namespace, with localized fields and relations.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@BasePath		/v1
package main

func main() {
	Execute()
}
