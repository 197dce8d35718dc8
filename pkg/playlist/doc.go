// Package playlist reads and writes playlist files.
//
// Supported output formats:
//   - M3U: extended M3U with #EXTINF lines (also written for .m3u8, always UTF-8)
//   - PLS: the INI-style format used by Winamp and most internet radio players
//   - XSPF: the XML Shareable Playlist Format
//   - WPL: the SMIL based Windows Media Player playlist
//   - JSON: the cloudplay playlist model
//
// M3U and PLS can also be parsed so remote playlists can be merged into new
// ones. Relative entries are resolved against the playlist location.
package playlist
