package constant

// ProbeTemplate is a Go text/template rendering the tracks of a probed media file.
const ProbeTemplate = `{{ .URI }}
{{ range $i, $t := .Tracks }}
{{ bold (printf "#%d" $i) }} {{ $t.Format.MimeType }} {{ faint (printf "id %s" $t.Format.TrackID) }}
  duration  {{ duration $t.Format.DurationUs }}
{{- if $t.Video }}
  size      {{ $t.Format.Width }}x{{ $t.Format.Height }}
{{- end }}
{{- if $t.Audio }}
  audio     {{ $t.Format.ChannelCount }}ch {{ $t.Format.SampleRate }}Hz
{{- end }}
{{- if $t.Format.Language }}
  language  {{ $t.Format.Language }}
{{- end }}
  samples   {{ quantify $t.Samples "sample" "samples" }} in {{ quantify $t.Fragments "fragment" "fragments" }}, {{ bytes $t.Bytes }}
{{- if $t.Decoder }}
  decoder   {{ $t.Decoder }}
{{- end }}
{{- if $t.Init }}
  init      {{ $t.Init }}
{{- end }}
{{ end }}`
