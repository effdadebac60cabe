package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/zhancare-client/assistant"
	"github.com/jrsteele09/zhancare-client/auth"
	"github.com/jrsteele09/zhancare-client/clinics"
	"github.com/jrsteele09/zhancare-client/consultations"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/internal/utils"
	"github.com/jrsteele09/zhancare-client/profile"
	"github.com/jrsteele09/zhancare-client/sessions"
	"github.com/jrsteele09/zhancare-client/token"
)

type command struct {
	name      string
	usage     string
	protected bool
	run       func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "login", usage: "-email E -password P", run: cmdLogin},
	{name: "register", usage: "-first F -last L -email E -password P [-phone N] -accept", run: cmdRegister},
	{name: "logout", usage: "", run: cmdLogout},
	{name: "whoami", usage: "", run: cmdWhoami},
	{name: "forgot-password", usage: "-email E", run: cmdForgotPassword},
	{name: "reset-password", usage: "-email E -code C -password P", run: cmdResetPassword},
	{name: "clinics", usage: "[-near lat,lng] [-radius km] [-id N] [-search text]", protected: true, run: cmdClinics},
	{name: "doctors", usage: "[-specialty S]", protected: true, run: cmdDoctors},
	{name: "consultations", usage: "[-status s1,s2] [-type t1,t2] [-search text] [-from YYYY-MM-DD] [-to YYYY-MM-DD]", protected: true, run: cmdConsultations},
	{name: "book", usage: "-symptoms text [-type video|phone|chat] [-specialty S] [-at RFC3339] [-doctor N] [-urgent]", protected: true, run: cmdBook},
	{name: "cancel", usage: "-id N", protected: true, run: cmdCancel},
	{name: "join", usage: "-id N", protected: true, run: cmdJoin},
	{name: "profile", usage: "[-city C] [-phone N] [-blood-type T] [-picture file]", protected: true, run: cmdProfile},
	{name: "ask", usage: "[-lang ru|kz|en] [-image file.jpg] question...", run: cmdAsk},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("ZHANCARE_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, err := a.auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", user.Name, user.Email)
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register")
	var req auth.RegisterRequest
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	fs.StringVar(&req.Email, "email", "", "email")
	fs.StringVar(&req.Phone, "phone", "", "phone number")
	fs.StringVar(&req.Password, "password", os.Getenv("ZHANCARE_PASSWORD"), "password, at least 8 characters")
	fs.BoolVar(&req.AcceptTerms, "accept", false, "accept the terms of use")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.ConfirmPassword = req.Password

	user, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s\n", user.Name)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	user := a.store.User()
	if user == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\n", user.Name, user.Email)
	if user.Role != "" {
		fmt.Fprintf(a.out, "role:   %s\n", user.Role)
	}
	fmt.Fprintf(a.out, "home:   %s\n", sessions.HomeRoute(user))
	if tok, ok := a.store.Token(); ok {
		if info, err := token.Inspect(tok.AccessToken); err == nil && !info.ExpiresAt.IsZero() {
			if left := info.ExpiresIn(time.Now()); left > 0 {
				fmt.Fprintf(a.out, "access: expires in %s\n", left.Round(time.Second))
			} else {
				fmt.Fprintln(a.out, "access: expired, it will be refreshed on the next request")
			}
		}
	}
	return nil
}

func cmdForgotPassword(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("forgot-password")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := a.auth.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func cmdResetPassword(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("reset-password")
	var req auth.ResetPasswordRequest
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.ResetCode, "code", "", "code from the reset email")
	fs.StringVar(&req.NewPassword, "password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.ConfirmPassword = req.NewPassword

	if err := a.auth.VerifyResetCode(ctx, req.Email, req.ResetCode); err != nil {
		return err
	}
	if err := a.auth.ResetPassword(ctx, req); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed, you can log in now")
	return nil
}

func cmdClinics(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("clinics")
	near := fs.String("near", "", "lat,lng to search around")
	radius := fs.Float64("radius", clinics.DefaultRadiusKm, "search radius in km")
	id := fs.Int64("id", 0, "show one clinic")
	search := fs.String("search", "", "describe what you need")
	city := fs.String("city", "", "city for -search")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *id != 0:
		c, err := a.clinics.Get(ctx, *id)
		if err != nil {
			return err
		}
		printClinic(a, *c)
		return nil
	case *search != "":
		res, err := a.clinics.AISearch(ctx, clinics.AISearchRequest{Query: *search, CityName: *city})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, res.Explanation)
		return printClinics(a, res.Clinics)
	case *near != "":
		lat, lng, err := parseLatLng(*near)
		if err != nil {
			return err
		}
		list, err := a.clinics.Nearest(ctx, lat, lng, *radius)
		if err != nil {
			return err
		}
		return printClinics(a, list)
	}
	list, err := a.clinics.List(ctx)
	if err != nil {
		return err
	}
	return printClinics(a, list)
}

func parseLatLng(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, errors.Wrapf(errors.ErrInvalidInput, "-near wants lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, errors.Wrapf(errors.ErrInvalidInput, "latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, errors.Wrapf(errors.ErrInvalidInput, "longitude %q", parts[1])
	}
	return lat, lng, nil
}

func printClinics(a *app, list []clinics.Clinic) error {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No clinics found")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tRATING")
	for _, c := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\n", c.ID, c.Name, c.Address, c.Rating)
	}
	return tw.Flush()
}

func printClinic(a *app, c clinics.Clinic) {
	fmt.Fprintf(a.out, "%s\n%s\n", c.Name, c.Address)
	if c.Phone != "" {
		fmt.Fprintf(a.out, "phone:    %s\n", c.Phone)
	}
	if c.WorkingHours != "" {
		fmt.Fprintf(a.out, "hours:    %s\n", c.WorkingHours)
	}
	if len(c.Services) > 0 {
		fmt.Fprintf(a.out, "services: %s\n", strings.Join(c.Services, ", "))
	}
	if c.Description != "" {
		fmt.Fprintf(a.out, "\n%s\n", c.Description)
	}
}

func cmdDoctors(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("doctors")
	specialty := fs.String("specialty", "", "filter by specialty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	docs, err := a.consultations.AvailableDoctors(ctx, consultations.Specialty(*specialty))
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "No doctors available")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSPECIALTY\tYEARS\tRATING")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f\n", d.ID, d.FullName(), d.Specialization, d.ExperienceYears, d.Rating)
	}
	return tw.Flush()
}

func cmdConsultations(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("consultations")
	status := fs.String("status", "", "comma separated statuses")
	types := fs.String("type", "", "comma separated types")
	var f consultations.Filters
	fs.StringVar(&f.Search, "search", "", "search symptoms and doctors")
	fs.StringVar(&f.DateFrom, "from", "", "first day, YYYY-MM-DD")
	fs.StringVar(&f.DateTo, "to", "", "last day, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, s := range splitList(*status) {
		f.Status = append(f.Status, consultations.Status(s))
	}
	for _, t := range splitList(*types) {
		f.Types = append(f.Types, consultations.Type(t))
	}

	list, err := a.consultations.Mine(ctx, f)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No consultations")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tWHEN\tDOCTOR\tSYMPTOMS")
	for _, c := range list {
		when := c.CreatedAt
		if c.ScheduledAt != nil {
			when = *c.ScheduledAt
		}
		doctor := c.DoctorName()
		if doctor == "" {
			doctor = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Status, when.Local().Format("2006-01-02 15:04"), doctor, c.Symptoms)
	}
	return tw.Flush()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cmdBook(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("book")
	symptoms := fs.String("symptoms", "", "what bothers you")
	kind := fs.String("type", "", "video, phone or chat")
	specialty := fs.String("specialty", "", "medical specialty")
	at := fs.String("at", "", "scheduled time, RFC3339")
	doctor := fs.Int64("doctor", 0, "doctor id")
	urgent := fs.Bool("urgent", false, "mark as urgent")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := consultations.CreateRequest{
		Symptoms:         *symptoms,
		Type:             consultations.Type(*kind),
		ConsultationType: consultations.Specialty(*specialty),
	}
	if *urgent {
		req.IsUrgent = utils.Ptr(true)
	}
	if *doctor > 0 {
		req.DoctorID = doctor
	}
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "-at %q", *at)
		}
		req.ScheduledAt = &t
	}

	c, err := a.consultations.Create(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Booked consultation %d (%s)\n", c.ID, c.Status)
	return nil
}

func consultationID(name string, args []string) (int64, error) {
	fs := newFlagSet(name)
	id := fs.Int64("id", 0, "consultation id")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *id <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "-id is required")
	}
	return *id, nil
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	id, err := consultationID("cancel", args)
	if err != nil {
		return err
	}
	if err := a.consultations.Cancel(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Cancelled consultation %d\n", id)
	return nil
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	id, err := consultationID("join", args)
	if err != nil {
		return err
	}
	url, err := a.consultations.Join(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, url)
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("profile")
	city := fs.String("city", "", "city")
	phone := fs.String("phone", "", "phone number")
	bloodType := fs.String("blood-type", "", "blood type")
	picture := fs.String("picture", "", "upload a profile picture")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *picture != "" {
		f, err := os.Open(*picture)
		if err != nil {
			return err
		}
		defer f.Close()
		url, err := a.profile.UploadPicture(ctx, *picture, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Picture uploaded: %s\n", url)
	}

	var update profile.UpdateRequest
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "city":
			update.City = city
		case "phone":
			update.Phone = phone
		case "blood-type":
			update.BloodType = bloodType
		}
	})
	if update != (profile.UpdateRequest{}) {
		if _, err := a.profile.Update(ctx, update); err != nil {
			return err
		}
	}

	p, err := a.profile.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s <%s>\n", p.FirstName, p.LastName, p.Email)
	for _, row := range [][2]string{
		{"phone", p.Phone}, {"city", p.City}, {"blood type", p.BloodType},
		{"allergies", strings.Join(p.Allergies, ", ")}, {"picture", p.ProfilePicture},
	} {
		if row[1] != "" {
			fmt.Fprintf(a.out, "%-11s %s\n", row[0]+":", row[1])
		}
	}
	return nil
}

func cmdAsk(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("ask")
	lang := fs.String("lang", string(assistant.DefaultLanguage), "reply language")
	image := fs.String("image", "", "JPEG image to ask about")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.assistant == nil {
		return errors.Wrapf(errors.ErrUnsupported, "set ZHANCARE_MISTRAL_API_KEY to use the assistant")
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" && *image == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "ask needs a question")
	}

	var (
		reply *assistant.Reply
		err   error
	)
	if *image != "" {
		data, readErr := os.ReadFile(*image)
		if readErr != nil {
			return readErr
		}
		reply, err = a.assistant.AnalyzeImage(ctx, base64.StdEncoding.EncodeToString(data), question, assistant.Language(*lang))
	} else {
		reply, err = a.assistant.Send(ctx, []assistant.Message{{Role: assistant.RoleUser, Content: question}}, assistant.Language(*lang))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, reply.Text)
	if reply.SuggestDoctor {
		fmt.Fprintln(a.out, "\nConsider booking a doctor: zhancare book -symptoms \"...\"")
	}
	return nil
}
