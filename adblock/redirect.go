package adblock

import "strings"

// 重定向资源：$redirect=<name> 命中后返回的无害替身
var redirectResources = map[string]string{
	"noopjs":              "data:application/javascript;base64,KGZ1bmN0aW9uKCl7fSkoKTs=",
	"noop.js":             "data:application/javascript;base64,KGZ1bmN0aW9uKCl7fSkoKTs=",
	"noopcss":             "data:text/css;base64,",
	"noop.css":            "data:text/css;base64,",
	"nooptext":            "data:text/plain;base64,",
	"noop.txt":            "data:text/plain;base64,",
	"1x1-transparent.gif": "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7",
	"1x1.gif":             "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7",
	"noopframe":           "data:text/html;base64,PCFET0NUWVBFIGh0bWw+PGh0bWw+PGhlYWQ+PC9oZWFkPjxib2R5PjwvYm9keT48L2h0bWw+",
	"noop.html":           "data:text/html;base64,PCFET0NUWVBFIGh0bWw+PGh0bWw+PGhlYWQ+PC9oZWFkPjxib2R5PjwvYm9keT48L2h0bWw+",
	"empty":               "data:text/plain;base64,",
}

// RedirectURL 返回资源名对应的 data: URL，未知资源返回空字符串
func RedirectURL(resource string) string {
	return redirectResources[resource]
}

// redirectFromRule 从规则文本的选项部分提取重定向资源名
func redirectFromRule(ruleText string) string {
	idx := strings.LastIndex(ruleText, "$")
	if idx < 0 {
		return ""
	}
	for _, opt := range strings.Split(ruleText[idx+1:], ",") {
		opt = strings.TrimSpace(opt)
		for _, prefix := range []string{"redirect=", "redirect-rule="} {
			if strings.HasPrefix(opt, prefix) {
				name := strings.TrimPrefix(opt, prefix)
				// uBO 允许 name:priority
				if i := strings.IndexByte(name, ':'); i >= 0 {
					name = name[:i]
				}
				return name
			}
		}
	}
	return ""
}

// resultForRule 把命中的规则文本转成 MatchResult
func resultForRule(ruleText string) MatchResult {
	if strings.HasPrefix(ruleText, "@@") {
		return MatchResult{Matched: false, Exception: true, Filter: ruleText}
	}
	res := MatchResult{Matched: true, Filter: ruleText}
	if name := redirectFromRule(ruleText); name != "" {
		// 未知资源直接拦截
		res.Redirect = RedirectURL(name)
	}
	return res
}
