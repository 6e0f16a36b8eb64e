package cards

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

const fontsCSS = "https://fonts.googleapis.com/css2?family=%s:wght@400;700;800&display=block"

var markupTemplate = template.Must(template.New("card").Funcs(template.FuncMap{
	"url":  func(s string) template.URL { return template.URL(s) },
	"css":  func(s string) template.CSS { return template.CSS(s) },
	"px":   func(n int) template.CSS { return template.CSS(fmt.Sprintf("%dpx", n)) },
	"font": func(f Font) template.URL { return template.URL(fmt.Sprintf(fontsCSS, url.QueryEscape(f.Family))) },
}).Parse(`<!DOCTYPE html>
<html lang="bn">
<head>
<meta charset="utf-8">
<link rel="stylesheet" href="{{font .Font}}">
<style>
html,body{margin:0;padding:0;}
.card{position:relative;overflow:hidden;box-sizing:border-box;width:{{px .Width}};height:{{px .Height}};background:{{css .Background}};color:{{css .Foreground}};font-family:{{printf "'%s',sans-serif" .Font.Family | css}};display:flex;}
.card.image-top,.card.image-middle,.card.centered,.card.circle{flex-direction:column;padding:32px;}
.card.split,.card.sidebar,.card.block{flex-direction:row;}
.card.image-right{flex-direction:row-reverse;}
.card.overlay{flex-direction:column;justify-content:flex-end;}
.image{position:relative;overflow:hidden;background:#e5e7eb;}
.image img{width:100%;height:100%;object-fit:cover;display:block;}
.image.transparent{background:transparent;}
.image.transparent img{object-fit:contain;object-position:bottom;}
.image-top .image{height:55%;border-radius:12px;margin-bottom:24px;}
.image-middle .image{height:300px;border-radius:8px;margin:24px 0;}
.split .image,.sidebar .image{width:50%;height:100%;}
.block .image{position:absolute;top:50%;right:-30px;width:260px;height:260px;margin-top:-130px;border-radius:50%;border:4px solid #fff;z-index:2;}
.overlay .image{position:absolute;inset:0;}
.overlay .image::after{content:"";position:absolute;inset:0;background:linear-gradient(to top,rgba(0,0,0,.85),transparent 60%);}
.circle .image{width:208px;height:208px;border-radius:50%;margin:0 auto 32px;border:2px solid {{css .Accent}};}
.centered .image{width:64px;height:64px;border-radius:50%;margin:0 auto;}
.content{position:relative;z-index:1;flex:1;display:flex;flex-direction:column;}
.split .content,.sidebar .content,.block .content{padding:40px;}
.overlay .content{flex:0;padding:32px;}
.centered .content,.circle .content{align-items:center;text-align:center;justify-content:center;}
.badge{display:inline-block;align-self:flex-start;background:{{css .Accent}};color:#fff;font-size:12px;font-weight:700;padding:4px 12px;margin-bottom:12px;}
h1{margin:0 0 16px;font-size:{{px .Headline.FontSize}};font-weight:{{.Headline.FontWeight}};line-height:{{.Headline.LineHeight}};}
.body{font-size:{{px 14}};opacity:.75;margin:0;}
.speaker h2{margin:0;font-size:24px;font-weight:700;}
.speaker p{margin:4px 0 0;font-size:13px;font-weight:700;opacity:.7;}
.quote-icon{width:60px;height:60px;color:{{css .Accent}};margin-bottom:16px;}
.footer{margin-top:auto;padding-top:16px;display:flex;justify-content:space-between;align-items:center;}
.date{font-size:12px;font-weight:700;opacity:.7;}
.brand{display:flex;align-items:center;gap:8px;}
.brand .mark{width:40px;height:40px;}
.brand .mark img{width:100%;height:100%;object-fit:contain;}
.brand .monogram{box-sizing:border-box;width:40px;height:40px;border:2.5px solid {{css .Header.BorderColor}};border-radius:8px;display:flex;align-items:center;justify-content:center;font-weight:700;font-size:22px;color:{{css .Header.TextColor}};}
.brand .word{font-size:20px;font-weight:700;line-height:1;}
.brand .word .a{color:{{css .Header.TextColor}};}
.brand .word .b{color:{{css .Header.AccentColor}};}
.brand .tagline{font-size:9px;font-weight:700;letter-spacing:.2em;text-transform:uppercase;opacity:.8;color:{{css .Header.TextColor}};}
</style>
</head>
<body>
<div class="card {{.Arrangement}}{{if .ImageRight}} image-right{{end}}">
{{- if ne .Arrangement "centered"}}{{template "image" .}}{{end}}
<div class="content">
{{- if .Badge}}<span class="badge">{{.Badge}}</span>{{end}}
{{- with .QuoteIcon}}<svg class="quote-icon" viewBox="{{.ViewBox}}" fill="currentColor"><path d="{{.Path}}"/></svg>{{end}}
<h1>{{.Headline.Text}}</h1>
{{- with .Body}}<p class="body">{{.Text}}</p>{{end}}
{{- if eq .Arrangement "centered"}}{{template "image" .}}{{end}}
{{- with .Speaker}}<div class="speaker"><h2>{{.Name}}</h2>{{if .Title}}<p>{{.Title}}</p>{{end}}</div>{{end}}
{{- if .Source}}<p class="body">{{.Source}}</p>{{end}}
<div class="footer">
<span class="date">{{.Date}}</span>
<div class="brand">
{{- if .Header.Logo}}<div class="mark"><img src="{{url .Header.Logo}}" alt=""></div>{{else}}<div class="monogram">{{.Header.Monogram}}</div>{{end}}
<div><div class="word"><span class="a">{{.Header.WordmarkA}}</span><span class="b">{{.Header.WordmarkB}}</span></div><div class="tagline">{{.Header.Tagline}}</div></div>
</div>
</div>
</div>
</div>
</body>
</html>
{{define "image"}}<div class="image{{if .Image.Transparent}} transparent{{end}}">{{if .Image.Src}}<img src="{{url .Image.Src}}" alt="">{{end}}</div>{{end}}`))

// Markup renders layout as a standalone HTML document at native size.
func Markup(layout Layout) (string, error) {
	if layout.Width <= 0 || layout.Height <= 0 {
		return "", fmt.Errorf("cards: invalid canvas %dx%d", layout.Width, layout.Height)
	}
	// Image sources reach the template as trusted URLs, so recheck them.
	if layout.Image.Src != "" {
		if _, ok := safeImageSource(layout.Image.Src); !ok {
			layout.Image.Src = ""
		}
	}
	if layout.Header.Logo != "" {
		if _, ok := safeImageSource(layout.Header.Logo); !ok {
			layout.Header.Logo = ""
			layout.Header.Monogram = "bk"
		}
	}
	for _, c := range []*string{&layout.Background, &layout.Foreground, &layout.Accent, &layout.Header.TextColor, &layout.Header.AccentColor, &layout.Header.BorderColor} {
		if !isHexColor(*c) {
			*c = "#000000"
		}
	}

	var buf bytes.Buffer
	if err := markupTemplate.Execute(&buf, layout); err != nil {
		return "", fmt.Errorf("cards: render markup: %w", err)
	}
	return buf.String(), nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	return strings.Trim(strings.ToLower(s[1:]), "0123456789abcdef") == ""
}
