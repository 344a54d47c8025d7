// Package approval implements the browser-side consent cache in front of
// the Notion authorization flow.
//
// A user who approves an MCP client once is not asked again from the same
// browser. The set of approved client IDs is stored in a cookie named
// mcp-approved-clients whose value is
//
//	hex(HMAC-SHA256(key, json)) + "." + base64(json)
//
// where json is an array of strings. The server keeps no session state;
// rotating the signing secret invalidates every consent cookie at once.
//
// Verification fails closed. A missing cookie, a bad MAC, or a payload that
// is not a JSON string array are all reported as "no prior consent".
package approval
