// Command resetpw manages Image Editor accounts from the command line.
//
// Usage:
//
//	resetpw [--database-dir DIR] <command> [options] [username]
//
// Commands:
//
//	create  Create a user. Prompts for the password twice. Grants
//	        upload_files unless --cap is given.
//
//	reset   Reset a user's password. All of that user's sessions are
//	        invalidated.
//
//	grant   Replace a user's capabilities with the --cap values.
//
//	status  List users and their capabilities.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
package main
