// Package notion_tools provides the MCP tools that call the Notion API on
// behalf of the authorized integration installation.
//
// # Available Tools
//
// Search and pages:
//   - notion_search: Search pages and databases by title
//   - notion_get_page: Retrieve a page's properties
//   - notion_create_page: Create a page or database row
//   - notion_update_page: Update or archive a page
//
// Databases:
//   - notion_get_database: Retrieve a database schema
//   - notion_query_database: Query database rows
//
// Blocks:
//   - notion_get_block_children: List a block's or page's content
//   - notion_append_block_children: Append content blocks
//   - notion_delete_block: Move a block to trash
//
// Users and comments:
//   - notion_list_users, notion_get_user, notion_get_self
//   - notion_create_comment, notion_list_comments
//
// Arguments that carry Notion objects (filters, properties, blocks) accept
// either JSON text or structured values. Results are Notion's JSON
// responses, indented.
//
// # Authentication
//
// On the streamable HTTP transport the Notion token travels in the grant of
// the MCP access token. On stdio the token from NOTION_TOKEN is used.
package notion_tools
