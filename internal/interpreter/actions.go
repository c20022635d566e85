package interpreter

import (
	"context"
	"fmt"
	"strings"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/transfer"
)

// randomChars is the alphabet of random edit text.
const randomChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ \t\n"

// perform runs one action and returns the locator strategy used, if any.
func (in *Interpreter) perform(ctx context.Context, r *run, a model.Action) (string, error) {
	switch a.Kind {
	case model.KindClick:
		return in.click(ctx, r, a.Name)
	case model.KindXPath:
		el, err := r.app.FindElement(ctx, platform.ByXPath, a.Name)
		if err != nil {
			return "", err
		}
		return string(platform.ByXPath), el.Click(ctx)
	case model.KindEdit:
		m, err := in.resolver.Resolve(ctx, r.scope(r.app), a.Name)
		if err != nil {
			return "", err
		}
		return m.Strategy, m.Element.SendKeys(ctx, in.editText(a))
	case model.KindKey:
		return in.key(ctx, r, a)
	case model.KindGet:
		m, err := in.resolver.Resolve(ctx, r.scope(r.app), a.Name)
		if err != nil {
			return "", err
		}
		v, err := m.Element.Attribute(ctx, a.Attr)
		if err != nil {
			return m.Strategy, fmt.Errorf("reading %s of %q: %w", a.Attr, a.Name, err)
		}
		r.capture.Set(a.Title, v)
		r.logger.Info("captured", "title", a.Title, "value", v)
		return m.Strategy, nil
	case model.KindDelay:
		return "", nil
	case model.KindExe:
		return "", r.provider.Driver.Exec(ctx, a.Command)
	case model.KindUpload:
		_, err := r.channel.Run(ctx, transfer.Session{Target: in.opts.Target, Direction: transfer.Upload, Src: a.Src, Dest: a.Dest})
		return "", err
	case model.KindDownload:
		_, err := r.channel.Run(ctx, transfer.Session{Target: in.opts.Target, Direction: transfer.Download, Src: a.Src, Dest: a.Dest})
		return "", err
	default:
		return "", fmt.Errorf("unsupported action %q", a.Kind)
	}
}

func (in *Interpreter) click(ctx context.Context, r *run, name string) (string, error) {
	scope := r.scope(r.app)
	m, err := in.resolver.Resolve(ctx, scope, name)
	if err == nil {
		return m.Strategy, m.Element.Click(ctx)
	}
	el, ferr := in.clickFallback.Find(ctx, scope, name)
	if ferr != nil || el == nil {
		return "", err
	}
	return in.clickFallback.Name(), el.Click(ctx)
}

// key sends the key symbol Count times to the named element, looked up
// in the application session first and then on the desktop.
func (in *Interpreter) key(ctx context.Context, r *run, a model.Action) (string, error) {
	keys, err := model.ParseKeys(a.Keys)
	if err != nil {
		return "", err
	}
	m, err := in.resolver.Resolve(ctx, r.scope(r.app), a.Name)
	if err != nil {
		root, rerr := r.rootSession(ctx)
		if rerr != nil {
			return "", err
		}
		if root == r.app {
			return "", err
		}
		m, err = in.resolver.Resolve(ctx, r.scope(root), a.Name)
		if err != nil {
			return "", err
		}
		m.Strategy = "root " + m.Strategy
	}
	count := max(a.Count, 1)
	return m.Strategy, m.Element.SendKeys(ctx, strings.Repeat(keys, count))
}

func (in *Interpreter) editText(a model.Action) string {
	if a.Random <= 0 {
		return a.Text
	}
	var b strings.Builder
	for range a.Random {
		b.WriteByte(randomChars[in.rng.IntN(len(randomChars))])
	}
	return b.String()
}
