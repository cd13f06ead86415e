// Package ytdlp implements fetch.Provider and fetch.Probe on top of the yt-dlp
// executable, driven through github.com/lrstanley/go-ytdlp.
//
// Progress is read from yt-dlp's progress template and translated into
// fetch.Event values. Collection item positions are recovered from the
// output filename, which always carries the zero-padded playlist index
// right after the job token. A second probe backed by github.com/ytget/ytdlp
// resolves "list=" URLs without spawning yt-dlp when the flat extraction is
// unavailable.
package ytdlp
